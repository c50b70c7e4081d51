// Package spdxtest builds in-memory SPDX documents for tests.
package spdxtest

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"

	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// DocumentID is the id of every document produced by a Builder.
const DocumentID = "SPDXRef-DOCUMENT"

// Builder accumulates packages, files and relationships.
type Builder struct {
	doc      spdx.Document
	packages int
	files    int
}

// NewBuilder returns an empty document builder.
func NewBuilder() *Builder {
	return &Builder{doc: spdx.Document{
		SPDXID:        DocumentID,
		SPDXVersion:   "SPDX-2.3",
		Name:          "test-document",
		Packages:      []spdx.Package{},
		Files:         []spdx.File{},
		Relationships: []spdx.Relationship{},
	}}
}

// Package adds a package and returns its id.
func (b *Builder) Package(name string) string {
	b.packages++
	id := fmt.Sprintf("SPDXRef-Package-%d", b.packages)
	b.doc.Packages = append(b.doc.Packages, spdx.Package{SPDXID: id, Name: name})
	return id
}

// PURL attaches a purl external reference to the package with id pkg.
func (b *Builder) PURL(pkg, locator string) *Builder {
	for i := range b.doc.Packages {
		if b.doc.Packages[i].SPDXID == pkg {
			b.doc.Packages[i].ExternalRefs = append(b.doc.Packages[i].ExternalRefs, spdx.ExternalRef{
				ReferenceCategory: "PACKAGE-MANAGER",
				ReferenceType:     "purl",
				ReferenceLocator:  locator,
			})
		}
	}
	return b
}

// File adds a file entry and returns its id.
func (b *Builder) File(fileName string, checksums ...spdx.Checksum) string {
	b.files++
	id := fmt.Sprintf("SPDXRef-File-%d", b.files)
	b.doc.Files = append(b.doc.Files, spdx.File{SPDXID: id, FileName: fileName, Checksums: checksums})
	return id
}

// Relate adds a relationship from -> to of the given type.
func (b *Builder) Relate(from, to string, typ spdx.RelationshipType) *Builder {
	b.doc.Relationships = append(b.doc.Relationships, spdx.Relationship{
		SourceID:  from,
		RelatedID: to,
		Type:      typ,
	})
	return b
}

// Describes marks pkg as a root package of the document.
func (b *Builder) Describes(pkg string) *Builder {
	return b.Relate(DocumentID, pkg, spdx.Describes)
}

// Contains declares file as content of pkg.
func (b *Builder) Contains(pkg, file string) *Builder {
	return b.Relate(pkg, file, spdx.Contains)
}

// Document returns the built document. The builder must not be reused.
func (b *Builder) Document() *spdx.Document {
	return &b.doc
}

// JSON encodes the built document the way a manifest file carries it.
func (b *Builder) JSON() ([]byte, error) {
	for i := range b.doc.Files {
		if b.doc.Files[i].Checksums == nil {
			b.doc.Files[i].Checksums = []spdx.Checksum{}
		}
	}
	return json.MarshalIndent(&b.doc, "", "  ")
}

// WriteFile writes the JSON encoding of the document to path.
func (b *Builder) WriteFile(path string) error {
	data, err := b.JSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Sum computes the checksum of data with alg.
func Sum(alg spdx.ChecksumAlgorithm, data []byte) spdx.Checksum {
	var h hash.Hash
	switch alg {
	case spdx.SHA1:
		h = sha1.New()
	case spdx.SHA256:
		h = sha256.New()
	case spdx.SHA384:
		h = sha512.New384()
	case spdx.SHA512:
		h = sha512.New()
	default:
		panic(fmt.Sprintf("spdxtest: unsupported algorithm %s", alg))
	}
	h.Write(data)
	return spdx.Checksum{Algorithm: alg, Value: hex.EncodeToString(h.Sum(nil))}
}

// Corrupt returns c with the first hex digit of its value changed.
func Corrupt(c spdx.Checksum) spdx.Checksum {
	v := []byte(c.Value)
	if len(v) > 0 {
		if v[0] == '0' {
			v[0] = '1'
		} else {
			v[0] = '0'
		}
	}
	c.Value = string(v)
	return c
}
