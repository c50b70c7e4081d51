// Package manifest builds read-only lookup structures over a parsed SPDX
// document: elements by id, relationships by endpoint, and file associations
// by normalized path and by bare file name.
package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// ErrMalformedManifest is returned when element ids are not unique.
var ErrMalformedManifest = errors.New("malformed manifest")

// FileAssociation links a manifest file entry to a package that declares it.
type FileAssociation struct {
	File    *spdx.File
	Package *spdx.Package
	// Path is the normalized relative path of File.
	Path string
}

// Index is built once per manifest and is safe for concurrent reads.
type Index struct {
	doc *spdx.Document

	packages     map[string]*spdx.Package
	packageOrder map[string]int
	files        map[string]*spdx.File

	bySource map[string][]spdx.Relationship
	byDest   map[string][]spdx.Relationship

	byPath map[string][]FileAssociation
	byName map[string][]FileAssociation
}

// Build indexes doc. It fails with ErrMalformedManifest when two elements
// share an id.
func Build(doc *spdx.Document, logger *slog.Logger) (*Index, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrMalformedManifest)
	}

	ix := &Index{
		doc:          doc,
		packages:     make(map[string]*spdx.Package, len(doc.Packages)),
		packageOrder: make(map[string]int, len(doc.Packages)),
		files:        make(map[string]*spdx.File, len(doc.Files)),
		bySource:     make(map[string][]spdx.Relationship),
		byDest:       make(map[string][]spdx.Relationship),
		byPath:       make(map[string][]FileAssociation),
		byName:       make(map[string][]FileAssociation),
	}

	seen := map[string]string{doc.SPDXID: "document"}
	for i := range doc.Packages {
		pkg := &doc.Packages[i]
		if kind, dup := seen[pkg.SPDXID]; dup {
			return nil, fmt.Errorf("%w: package id %q already used by a %s", ErrMalformedManifest, pkg.SPDXID, kind)
		}
		seen[pkg.SPDXID] = "package"
		ix.packages[pkg.SPDXID] = pkg
		ix.packageOrder[pkg.SPDXID] = i
	}
	for i := range doc.Files {
		f := &doc.Files[i]
		if kind, dup := seen[f.SPDXID]; dup {
			return nil, fmt.Errorf("%w: file id %q already used by a %s", ErrMalformedManifest, f.SPDXID, kind)
		}
		seen[f.SPDXID] = "file"
		ix.files[f.SPDXID] = f
	}

	for _, rel := range doc.Relationships {
		ix.bySource[rel.SourceID] = append(ix.bySource[rel.SourceID], rel)
		ix.byDest[rel.RelatedID] = append(ix.byDest[rel.RelatedID], rel)
	}

	ix.associateFiles(logger)

	for p, assocs := range ix.byPath {
		if len(assocs) < 2 {
			continue
		}
		names := make([]string, 0, len(assocs))
		for _, a := range assocs {
			names = append(names, a.Package.Name)
		}
		logger.Debug("file is declared by multiple packages", "path", p, "count", len(assocs), "packages", names)
	}

	logger.Debug("manifest indexed",
		"packages", len(ix.packages),
		"files", len(ix.files),
		"relationships", len(doc.Relationships),
		"paths", len(ix.byPath),
	)
	return ix, nil
}

// associateFiles resolves every file-to-package relationship into a
// FileAssociation. A file is content of a package when it is the target of a
// root-leaning edge or the source of a leaf-leaning edge.
func (ix *Index) associateFiles(logger *slog.Logger) {
	type pair struct{ file, pkg string }
	added := make(map[pair]bool)

	for i := range ix.doc.Files {
		f := &ix.doc.Files[i]
		normalized := NormalizePath(f.FileName)
		name := path.Base(normalized)

		add := func(pkgID string) {
			pkg, ok := ix.packages[pkgID]
			if !ok || added[pair{f.SPDXID, pkgID}] {
				return
			}
			added[pair{f.SPDXID, pkgID}] = true
			assoc := FileAssociation{File: f, Package: pkg, Path: normalized}
			ix.byPath[normalized] = append(ix.byPath[normalized], assoc)
			ix.byName[name] = append(ix.byName[name], assoc)
		}

		for _, rel := range ix.byDest[f.SPDXID] {
			switch spdx.Category(rel.Type) {
			case spdx.RootLeaning:
				add(rel.SourceID)
			case spdx.Unclassified:
				warnUnsupported(logger, rel)
			}
		}
		for _, rel := range ix.bySource[f.SPDXID] {
			switch spdx.Category(rel.Type) {
			case spdx.LeafLeaning:
				add(rel.RelatedID)
			case spdx.Unclassified:
				warnUnsupported(logger, rel)
			}
		}
	}

	for _, group := range ix.byPath {
		ix.sortAssociations(group)
	}
	for _, group := range ix.byName {
		ix.sortAssociations(group)
	}
}

// sortAssociations orders by the declaring package's position in the
// manifest package list, then by file id.
func (ix *Index) sortAssociations(group []FileAssociation) {
	sort.SliceStable(group, func(i, j int) bool {
		pi, pj := ix.packageOrder[group[i].Package.SPDXID], ix.packageOrder[group[j].Package.SPDXID]
		if pi != pj {
			return pi < pj
		}
		return group[i].File.SPDXID < group[j].File.SPDXID
	})
}

func warnUnsupported(logger *slog.Logger, rel spdx.Relationship) {
	logger.Warn("relationship type is not supported",
		"type", rel.Type,
		"element", rel.SourceID,
		"related", rel.RelatedID,
	)
}

// NormalizePath turns a declared or installed path into the canonical
// relative form used as an index key: '/' separators, "." and ".." segments
// resolved, no leading "./" or "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Document returns the indexed document.
func (ix *Index) Document() *spdx.Document {
	return ix.doc
}

// DocumentID returns the id of the indexed document.
func (ix *Index) DocumentID() string {
	return ix.doc.SPDXID
}

// Package returns the package with the given id.
func (ix *Index) Package(id string) (*spdx.Package, bool) {
	p, ok := ix.packages[id]
	return p, ok
}

// Packages returns all packages in manifest order.
func (ix *Index) Packages() []*spdx.Package {
	out := make([]*spdx.Package, len(ix.doc.Packages))
	for i := range ix.doc.Packages {
		out[i] = &ix.doc.Packages[i]
	}
	return out
}

// File returns the file entry with the given id.
func (ix *Index) File(id string) (*spdx.File, bool) {
	f, ok := ix.files[id]
	return f, ok
}

// RelationshipsFrom returns relationships whose source is id.
func (ix *Index) RelationshipsFrom(id string) []spdx.Relationship {
	return ix.bySource[id]
}

// RelationshipsTo returns relationships whose target is id.
func (ix *Index) RelationshipsTo(id string) []spdx.Relationship {
	return ix.byDest[id]
}

// ByPath returns the associations declared at the normalized path p.
func (ix *Index) ByPath(p string) []FileAssociation {
	return ix.byPath[NormalizePath(p)]
}

// ByFileName returns every association whose bare file name is name.
func (ix *Index) ByFileName(name string) []FileAssociation {
	return ix.byName[name]
}
