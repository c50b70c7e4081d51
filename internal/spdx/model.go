package spdx

// Document is the subset of an SPDX 2.3 JSON document used for verification.
type Document struct {
	SPDXID            string         `json:"SPDXID"`
	SPDXVersion       string         `json:"spdxVersion,omitempty"`
	Name              string         `json:"name,omitempty"`
	DocumentNamespace string         `json:"documentNamespace,omitempty"`
	Packages          []Package      `json:"packages"`
	Files             []File         `json:"files"`
	Relationships     []Relationship `json:"relationships"`

	// Digest is the sha256 of the RFC 8785 canonical form of the raw document.
	// It is filled in by Parse and never serialized.
	Digest string `json:"-"`
}

// Package describes one package in the manifest.
type Package struct {
	SPDXID           string        `json:"SPDXID"`
	Name             string        `json:"name"`
	VersionInfo      string        `json:"versionInfo,omitempty"`
	Supplier         string        `json:"supplier,omitempty"`
	DownloadLocation string        `json:"downloadLocation,omitempty"`
	ExternalRefs     []ExternalRef `json:"externalRefs,omitempty"`
}

// ExternalRef points a package at an external identifier such as a purl.
type ExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

// File is a file entry with its declared path and checksums.
type File struct {
	SPDXID    string     `json:"SPDXID"`
	FileName  string     `json:"fileName"`
	Checksums []Checksum `json:"checksums"`
}

// Checksum is a hex-encoded digest produced by Algorithm.
type Checksum struct {
	Algorithm ChecksumAlgorithm `json:"algorithm"`
	Value     string            `json:"checksumValue"`
}

// ChecksumAlgorithm names a digest algorithm as spelled in SPDX documents.
type ChecksumAlgorithm string

const (
	MD5    ChecksumAlgorithm = "MD5"
	SHA1   ChecksumAlgorithm = "SHA1"
	SHA224 ChecksumAlgorithm = "SHA224"
	SHA256 ChecksumAlgorithm = "SHA256"
	SHA384 ChecksumAlgorithm = "SHA384"
	SHA512 ChecksumAlgorithm = "SHA512"
)

// Relationship is a directed edge between two SPDX element ids.
type Relationship struct {
	SourceID  string           `json:"spdxElementId"`
	RelatedID string           `json:"relatedSpdxElement"`
	Type      RelationshipType `json:"relationshipType"`
	Comment   string           `json:"comment,omitempty"`
}
