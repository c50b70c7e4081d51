// Package product computes the set of packages that make up a product: the
// dependency closure of its root packages.
package product

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/manifest"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// ErrRootPackageNotFound is returned when none of the requested root names
// match a package described by the document.
var ErrRootPackageNotFound = errors.New("root package not found")

// Set is an insertion-ordered set of packages keyed by id.
type Set struct {
	order []*spdx.Package
	ids   map[string]struct{}
}

func newSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// add inserts p and reports whether it was not yet present.
func (s *Set) add(p *spdx.Package) bool {
	if _, ok := s.ids[p.SPDXID]; ok {
		return false
	}
	s.ids[p.SPDXID] = struct{}{}
	s.order = append(s.order, p)
	return true
}

// Contains reports whether the package with the given id is in the set.
func (s *Set) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Packages returns members in insertion order.
func (s *Set) Packages() []*spdx.Package {
	if s == nil {
		return nil
	}
	return s.order
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns member names in insertion order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for _, p := range s.Packages() {
		names = append(names, p.Name)
	}
	return names
}

// All returns a set holding every package of the manifest.
func All(ix *manifest.Index) *Set {
	set := newSet()
	for _, p := range ix.Packages() {
		set.add(p)
	}
	return set
}

// FindRootPackages returns the packages described by the document whose
// name is one of names, in relationship order.
func FindRootPackages(ix *manifest.Index, names []string) []*spdx.Package {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var roots []*spdx.Package
	seen := make(map[string]bool)
	for _, rel := range ix.RelationshipsFrom(ix.DocumentID()) {
		if rel.Type != spdx.Describes {
			continue
		}
		pkg, ok := ix.Package(rel.RelatedID)
		if !ok || !wanted[pkg.Name] || seen[pkg.SPDXID] {
			continue
		}
		seen[pkg.SPDXID] = true
		roots = append(roots, pkg)
	}
	return roots
}

// Resolve returns the product package set for the given root names. With no
// names the product is every package in the manifest.
func Resolve(ix *manifest.Index, rootNames []string, logger *slog.Logger) (*Set, error) {
	if len(rootNames) == 0 {
		set := All(ix)
		logger.Debug("no root packages requested, using all packages", "count", set.Len())
		return set, nil
	}

	roots := FindRootPackages(ix, rootNames)
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: none of %s is described by the manifest", ErrRootPackageNotFound, strings.Join(rootNames, ", "))
	}

	rootNamesFound := make([]string, 0, len(roots))
	for _, r := range roots {
		rootNamesFound = append(rootNamesFound, r.Name)
	}
	logger.Debug("found root packages", "count", len(roots), "packages", rootNamesFound)

	set := Closure(ix, roots, logger)
	logger.Debug("dependent packages collected", "count", set.Len())
	return set, nil
}

// Closure walks breadth-first from roots, following root-leaning edges
// forward and leaf-leaning edges backward. Each package is enqueued at most
// once, so cycles terminate.
func Closure(ix *manifest.Index, roots []*spdx.Package, logger *slog.Logger) *Set {
	set := newSet()
	queue := make([]*spdx.Package, 0, len(roots))
	for _, r := range roots {
		if set.add(r) {
			queue = append(queue, r)
		}
	}

	visit := func(id string) {
		if pkg, ok := ix.Package(id); ok && set.add(pkg) {
			queue = append(queue, pkg)
		}
	}

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]

		for _, rel := range ix.RelationshipsFrom(pkg.SPDXID) {
			switch spdx.Category(rel.Type) {
			case spdx.RootLeaning:
				visit(rel.RelatedID)
			case spdx.Unclassified:
				warnUnsupported(logger, rel)
			}
		}

		for _, rel := range ix.RelationshipsTo(pkg.SPDXID) {
			switch spdx.Category(rel.Type) {
			case spdx.LeafLeaning:
				visit(rel.SourceID)
			case spdx.Unclassified:
				warnUnsupported(logger, rel)
			}
		}
	}

	return set
}

func warnUnsupported(logger *slog.Logger, rel spdx.Relationship) {
	logger.Warn("relationship type is not supported",
		"type", rel.Type,
		"package", rel.SourceID,
		"related_package", rel.RelatedID,
	)
}
