package spdx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `{
  "SPDXID": "SPDXRef-DOCUMENT",
  "spdxVersion": "SPDX-2.3",
  "name": "sample",
  "packages": [
    {
      "SPDXID": "SPDXRef-app",
      "name": "app",
      "versionInfo": "1.0.0",
      "externalRefs": [
        {"referenceCategory": "PACKAGE-MANAGER", "referenceType": "purl", "referenceLocator": "pkg:generic/acme/app@1.0.0"}
      ]
    }
  ],
  "files": [
    {
      "SPDXID": "SPDXRef-file-1",
      "fileName": "./bin/app",
      "checksums": [{"algorithm": "SHA256", "checksumValue": "00ff"}]
    }
  ],
  "relationships": [
    {"spdxElementId": "SPDXRef-DOCUMENT", "relatedSpdxElement": "SPDXRef-app", "relationshipType": "DESCRIBES"},
    {"spdxElementId": "SPDXRef-app", "relatedSpdxElement": "SPDXRef-file-1", "relationshipType": "CONTAINS"}
  ]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.SPDXID != "SPDXRef-DOCUMENT" {
		t.Errorf("expected document id SPDXRef-DOCUMENT, got %q", doc.SPDXID)
	}
	if len(doc.Packages) != 1 || doc.Packages[0].Name != "app" {
		t.Fatalf("unexpected packages: %+v", doc.Packages)
	}
	if len(doc.Files) != 1 || doc.Files[0].FileName != "./bin/app" {
		t.Fatalf("unexpected files: %+v", doc.Files)
	}
	if got := doc.Files[0].Checksums[0]; got.Algorithm != SHA256 || got.Value != "00ff" {
		t.Errorf("unexpected checksum: %+v", got)
	}
	if len(doc.Relationships) != 2 || doc.Relationships[1].Type != Contains {
		t.Fatalf("unexpected relationships: %+v", doc.Relationships)
	}
	if len(doc.Digest) != 64 {
		t.Errorf("expected 64-char hex digest, got %q", doc.Digest)
	}
}

func TestParseMissingArrays(t *testing.T) {
	doc, err := Parse([]byte(`{"SPDXID": "SPDXRef-DOCUMENT"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Packages == nil || doc.Files == nil || doc.Relationships == nil {
		t.Fatal("expected empty, non-nil collections")
	}
}

func TestParseDigestIgnoresFormatting(t *testing.T) {
	a, err := Parse([]byte(`{"SPDXID":"doc","name":"x","packages":[]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, err := Parse([]byte("{\n  \"packages\": [],\n  \"name\": \"x\",\n  \"SPDXID\": \"doc\"\n}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Digest != b.Digest {
		t.Errorf("expected equal digests, got %s and %s", a.Digest, b.Digest)
	}

	c, err := Parse([]byte(`{"SPDXID":"doc","name":"y","packages":[]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Digest == c.Digest {
		t.Error("expected different digests for different content")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := map[string]string{
		"not json":            `{"SPDXID": `,
		"missing document id": `{"packages": []}`,
		"file without name":   `{"SPDXID": "doc", "files": [{"SPDXID": "f1", "checksums": []}]}`,
		"relationship type":   `{"SPDXID": "doc", "relationships": [{"spdxElementId": "a", "relatedSpdxElement": "b"}]}`,
		"packages not array":  `{"SPDXID": "doc", "packages": {}}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			if !errors.Is(err, ErrManifestUnreadable) {
				t.Fatalf("expected ErrManifestUnreadable, got %v", err)
			}
		})
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sbom.spdx.json")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	doc, err := Read(path, 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.Name != "sample" {
		t.Errorf("expected name sample, got %q", doc.Name)
	}

	if _, err := Read(path, 16); !errors.Is(err, ErrManifestUnreadable) {
		t.Errorf("expected ErrManifestUnreadable for oversized manifest, got %v", err)
	}
	if _, err := Read(filepath.Join(dir, "missing.json"), 0); !errors.Is(err, ErrManifestUnreadable) {
		t.Errorf("expected ErrManifestUnreadable for missing manifest, got %v", err)
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		typ  RelationshipType
		want RelationshipCategory
	}{
		{Contains, RootLeaning},
		{Describes, RootLeaning},
		{DependsOn, RootLeaning},
		{StaticLink, RootLeaning},
		{DependencyOf, LeafLeaning},
		{TestToolOf, LeafLeaning},
		{ContainedBy, LeafLeaning},
		{DescribedBy, LeafLeaning},
		{Other, Unclassified},
		{SpecificationFor, Unclassified},
		{RelationshipType("MADE_UP"), Unclassified},
	}

	for _, tt := range tests {
		if got := Category(tt.typ); got != tt.want {
			t.Errorf("Category(%s) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestPackagePURL(t *testing.T) {
	pkg := Package{
		SPDXID: "SPDXRef-lib",
		Name:   "lib",
		ExternalRefs: []ExternalRef{
			{ReferenceCategory: "SECURITY", ReferenceType: "cpe23Type", ReferenceLocator: "cpe:2.3:a:acme:lib"},
			{ReferenceCategory: "PACKAGE-MANAGER", ReferenceType: "purl", ReferenceLocator: "pkg:npm/%40acme/lib@2.1.0"},
		},
	}

	purl, ok := pkg.PURL()
	if !ok {
		t.Fatal("expected purl to be found")
	}
	if purl.Type != "npm" || purl.Name != "lib" || purl.Version != "2.1.0" {
		t.Errorf("unexpected purl: %+v", purl)
	}
	if got := pkg.DisplayName(); got == "lib" {
		t.Errorf("expected display name to include purl, got %q", got)
	}

	bare := Package{SPDXID: "SPDXRef-bare", Name: "bare"}
	if _, ok := bare.PURL(); ok {
		t.Error("expected no purl for package without external refs")
	}
	if got := bare.DisplayName(); got != "bare" {
		t.Errorf("expected display name bare, got %q", got)
	}
}
