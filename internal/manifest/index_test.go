package manifest

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/BadgerOps/sbomcheck/internal/spdx"
	"github.com/BadgerOps/sbomcheck/internal/spdx/spdxtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"./bin/app", "bin/app"},
		{"bin/app", "bin/app"},
		{`bin\app`, "bin/app"},
		{`.\bin\app`, "bin/app"},
		{"bin/./lib/../app", "bin/app"},
		{"/bin/app", "bin/app"},
		{"bin//app", "bin/app"},
		{"../outside/app", "outside/app"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildIndexesElements(t *testing.T) {
	b := spdxtest.NewBuilder()
	app := b.Package("app")
	lib := b.Package("lib")
	f1 := b.File("./bin/app")
	f2 := b.File("lib/libfoo.so")
	b.Describes(app).
		Relate(app, lib, spdx.DependsOn).
		Contains(app, f1).
		Relate(f2, lib, spdx.ContainedBy)

	ix, err := Build(b.Document(), testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if ix.DocumentID() != spdxtest.DocumentID {
		t.Errorf("unexpected document id %q", ix.DocumentID())
	}
	if p, ok := ix.Package(lib); !ok || p.Name != "lib" {
		t.Errorf("expected package lib, got %+v", p)
	}
	if f, ok := ix.File(f2); !ok || f.FileName != "lib/libfoo.so" {
		t.Errorf("expected file lib/libfoo.so, got %+v", f)
	}
	if got := len(ix.RelationshipsFrom(app)); got != 2 {
		t.Errorf("expected 2 relationships from app, got %d", got)
	}
	if got := len(ix.RelationshipsTo(lib)); got != 2 {
		t.Errorf("expected 2 relationships to lib, got %d", got)
	}
	if pkgs := ix.Packages(); len(pkgs) != 2 || pkgs[0].Name != "app" || pkgs[1].Name != "lib" {
		t.Errorf("unexpected package order: %v", pkgs)
	}

	appFiles := ix.ByPath("bin/app")
	if len(appFiles) != 1 || appFiles[0].Package.Name != "app" || appFiles[0].Path != "bin/app" {
		t.Fatalf("unexpected associations for bin/app: %+v", appFiles)
	}
	libFiles := ix.ByPath("./lib/libfoo.so")
	if len(libFiles) != 1 || libFiles[0].Package.Name != "lib" {
		t.Fatalf("expected leaf-leaning CONTAINED_BY to associate file with lib, got %+v", libFiles)
	}
	if got := ix.ByFileName("libfoo.so"); len(got) != 1 {
		t.Errorf("expected one association by file name, got %d", len(got))
	}
}

func TestBuildSpellingsNormalizeIdentically(t *testing.T) {
	b := spdxtest.NewBuilder()
	p1 := b.Package("one")
	p2 := b.Package("two")
	f1 := b.File("./dir/sub/../file.txt")
	f2 := b.File(`dir\file.txt`)
	b.Contains(p1, f1).Contains(p2, f2)

	ix, err := Build(b.Document(), testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	assocs := ix.ByPath("dir/file.txt")
	if len(assocs) != 2 {
		t.Fatalf("expected both spellings at dir/file.txt, got %d", len(assocs))
	}
	if byName := ix.ByFileName("file.txt"); len(byName) != 2 {
		t.Errorf("expected path and name views to agree, got %d by name", len(byName))
	}
}

func TestBuildOrdersDuplicatesByPackageOrder(t *testing.T) {
	b := spdxtest.NewBuilder()
	first := b.Package("first")
	second := b.Package("second")
	third := b.Package("third")
	fa := b.File("shared.txt")
	fb := b.File("shared.txt")
	fc := b.File("shared.txt")
	// Relationships deliberately out of package order.
	b.Contains(third, fa).Contains(first, fb).Contains(second, fc)

	ix, err := Build(b.Document(), testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	assocs := ix.ByPath("shared.txt")
	if len(assocs) != 3 {
		t.Fatalf("expected 3 associations, got %d", len(assocs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if assocs[i].Package.Name != want {
			t.Errorf("association %d: expected package %s, got %s", i, want, assocs[i].Package.Name)
		}
	}
}

func TestBuildSameFileInMultiplePackages(t *testing.T) {
	b := spdxtest.NewBuilder()
	p1 := b.Package("one")
	p2 := b.Package("two")
	f := b.File("common/readme.txt")
	b.Contains(p1, f).Contains(p2, f).
		// A redundant reverse edge must not duplicate the association.
		Relate(f, p1, spdx.ContainedBy)

	ix, err := Build(b.Document(), testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	assocs := ix.ByPath("common/readme.txt")
	if len(assocs) != 2 {
		t.Fatalf("expected 2 associations, got %d", len(assocs))
	}
	if assocs[0].File != assocs[1].File {
		t.Error("expected both associations to share the same file entry")
	}
}

func TestBuildIgnoresNonPackageEndpoints(t *testing.T) {
	b := spdxtest.NewBuilder()
	f1 := b.File("a.txt")
	f2 := b.File("b.txt")
	b.Relate(spdxtest.DocumentID, f1, spdx.Describes).
		Relate(f2, f1, spdx.GeneratedFrom)

	ix, err := Build(b.Document(), testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := ix.ByPath("a.txt"); len(got) != 0 {
		t.Errorf("expected no association for a file described by the document, got %d", len(got))
	}
	if got := ix.ByPath("b.txt"); len(got) != 0 {
		t.Errorf("expected no association between two files, got %d", len(got))
	}
}

func TestBuildWarnsOnUnsupportedFileRelationships(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	b := spdxtest.NewBuilder()
	p := b.Package("pkg")
	f := b.File("spec.pdf")
	b.Relate(f, p, spdx.SpecificationFor)

	ix, err := Build(b.Document(), logger)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := ix.ByPath("spec.pdf"); len(got) != 0 {
		t.Errorf("unsupported relationship must not associate, got %d", len(got))
	}
	if !strings.Contains(buf.String(), "relationship type is not supported") {
		t.Errorf("expected a warning, got log: %s", buf.String())
	}
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	tests := map[string]*spdx.Document{
		"duplicate package": {
			SPDXID:   "doc",
			Packages: []spdx.Package{{SPDXID: "p1", Name: "a"}, {SPDXID: "p1", Name: "b"}},
		},
		"duplicate file": {
			SPDXID: "doc",
			Files:  []spdx.File{{SPDXID: "f1", FileName: "a"}, {SPDXID: "f1", FileName: "b"}},
		},
		"file reuses package id": {
			SPDXID:   "doc",
			Packages: []spdx.Package{{SPDXID: "x", Name: "a"}},
			Files:    []spdx.File{{SPDXID: "x", FileName: "b"}},
		},
		"package reuses document id": {
			SPDXID:   "doc",
			Packages: []spdx.Package{{SPDXID: "doc", Name: "a"}},
		},
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Build(doc, testLogger())
			if !errors.Is(err, ErrMalformedManifest) {
				t.Fatalf("expected ErrMalformedManifest, got %v", err)
			}
		})
	}
}
