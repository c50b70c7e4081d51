package spdx

// RelationshipType is an SPDX relationship type such as CONTAINS or DEPENDENCY_OF.
type RelationshipType string

const (
	Amends                    RelationshipType = "AMENDS"
	AncestorOf                RelationshipType = "ANCESTOR_OF"
	BuildDependencyOf         RelationshipType = "BUILD_DEPENDENCY_OF"
	BuildToolOf               RelationshipType = "BUILD_TOOL_OF"
	ContainedBy               RelationshipType = "CONTAINED_BY"
	Contains                  RelationshipType = "CONTAINS"
	CopyOf                    RelationshipType = "COPY_OF"
	DataFileOf                RelationshipType = "DATA_FILE_OF"
	DependencyManifestOf      RelationshipType = "DEPENDENCY_MANIFEST_OF"
	DependencyOf              RelationshipType = "DEPENDENCY_OF"
	DependsOn                 RelationshipType = "DEPENDS_ON"
	DescendantOf              RelationshipType = "DESCENDANT_OF"
	DescribedBy               RelationshipType = "DESCRIBED_BY"
	Describes                 RelationshipType = "DESCRIBES"
	DevDependencyOf           RelationshipType = "DEV_DEPENDENCY_OF"
	DevToolOf                 RelationshipType = "DEV_TOOL_OF"
	DistributionArtifact      RelationshipType = "DISTRIBUTION_ARTIFACT"
	DocumentationOf           RelationshipType = "DOCUMENTATION_OF"
	DynamicLink               RelationshipType = "DYNAMIC_LINK"
	ExampleOf                 RelationshipType = "EXAMPLE_OF"
	ExpandedFromArchive       RelationshipType = "EXPANDED_FROM_ARCHIVE"
	FileAdded                 RelationshipType = "FILE_ADDED"
	FileDeleted               RelationshipType = "FILE_DELETED"
	FileModified              RelationshipType = "FILE_MODIFIED"
	GeneratedFrom             RelationshipType = "GENERATED_FROM"
	Generates                 RelationshipType = "GENERATES"
	HasPrerequisite           RelationshipType = "HAS_PREREQUISITE"
	MetafileOf                RelationshipType = "METAFILE_OF"
	OptionalComponentOf       RelationshipType = "OPTIONAL_COMPONENT_OF"
	OptionalDependencyOf      RelationshipType = "OPTIONAL_DEPENDENCY_OF"
	Other                     RelationshipType = "OTHER"
	PackageOf                 RelationshipType = "PACKAGE_OF"
	PatchApplied              RelationshipType = "PATCH_APPLIED"
	PatchFor                  RelationshipType = "PATCH_FOR"
	PrerequisiteFor           RelationshipType = "PREREQUISITE_FOR"
	ProvidedDependencyOf      RelationshipType = "PROVIDED_DEPENDENCY_OF"
	RequirementDescriptionFor RelationshipType = "REQUIREMENT_DESCRIPTION_FOR"
	RuntimeDependencyOf       RelationshipType = "RUNTIME_DEPENDENCY_OF"
	SpecificationFor          RelationshipType = "SPECIFICATION_FOR"
	StaticLink                RelationshipType = "STATIC_LINK"
	TestCaseOf                RelationshipType = "TEST_CASE_OF"
	TestDependencyOf          RelationshipType = "TEST_DEPENDENCY_OF"
	TestOf                    RelationshipType = "TEST_OF"
	TestToolOf                RelationshipType = "TEST_TOOL_OF"
	VariantOf                 RelationshipType = "VARIANT_OF"
)

// RelationshipCategory tells which endpoint of a relationship is the container.
type RelationshipCategory int

const (
	// Unclassified relationships are never followed.
	Unclassified RelationshipCategory = iota
	// RootLeaning relationships point from the container to its content.
	RootLeaning
	// LeafLeaning relationships point from the content to its container.
	LeafLeaning
)

func (c RelationshipCategory) String() string {
	switch c {
	case RootLeaning:
		return "root-leaning"
	case LeafLeaning:
		return "leaf-leaning"
	default:
		return "unclassified"
	}
}

var relationshipCategories = map[RelationshipType]RelationshipCategory{
	Contains:             RootLeaning,
	Describes:            RootLeaning,
	DependsOn:            RootLeaning,
	DynamicLink:          RootLeaning,
	DistributionArtifact: RootLeaning,
	Generates:            RootLeaning,
	HasPrerequisite:      RootLeaning,
	PackageOf:            RootLeaning,
	StaticLink:           RootLeaning,

	Amends:               LeafLeaning,
	AncestorOf:           LeafLeaning,
	BuildDependencyOf:    LeafLeaning,
	BuildToolOf:          LeafLeaning,
	ContainedBy:          LeafLeaning,
	CopyOf:               LeafLeaning,
	DataFileOf:           LeafLeaning,
	DependencyOf:         LeafLeaning,
	DependencyManifestOf: LeafLeaning,
	DescendantOf:         LeafLeaning,
	DescribedBy:          LeafLeaning,
	DevDependencyOf:      LeafLeaning,
	DevToolOf:            LeafLeaning,
	DocumentationOf:      LeafLeaning,
	ExampleOf:            LeafLeaning,
	ExpandedFromArchive:  LeafLeaning,
	FileAdded:            LeafLeaning,
	FileDeleted:          LeafLeaning,
	FileModified:         LeafLeaning,
	GeneratedFrom:        LeafLeaning,
	MetafileOf:           LeafLeaning,
	OptionalComponentOf:  LeafLeaning,
	OptionalDependencyOf: LeafLeaning,
	PatchFor:             LeafLeaning,
	PatchApplied:         LeafLeaning,
	PrerequisiteFor:      LeafLeaning,
	ProvidedDependencyOf: LeafLeaning,
	RuntimeDependencyOf:  LeafLeaning,
	TestCaseOf:           LeafLeaning,
	TestDependencyOf:     LeafLeaning,
	TestOf:               LeafLeaning,
	TestToolOf:           LeafLeaning,
	VariantOf:            LeafLeaning,
}

// Category returns the fixed category of t.
func Category(t RelationshipType) RelationshipCategory {
	return relationshipCategories[t]
}
