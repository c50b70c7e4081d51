package engine

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BadgerOps/sbomcheck/internal/config"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
	"github.com/BadgerOps/sbomcheck/internal/spdx/spdxtest"
	"github.com/BadgerOps/sbomcheck/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:", testLogger())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Verify.Workers = 2
	cfg.Verify.MatchCase = config.MatchCaseSensitive
	return cfg
}

// testEnv is a manifest describing two products, "ide" and "cli", with
// installations on disk.
type testEnv struct {
	manifestPath string
	idePath      string
	cliPath      string
}

var installFiles = map[string]string{
	"bin/ide":         "ide launcher",
	"lib/common.so":   "common library",
	"plugins/git.jar": "git plugin",
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	b := spdxtest.NewBuilder()
	ide := b.Package("ide")
	common := b.Package("common")
	git := b.Package("git-plugin")
	cli := b.Package("cli")
	b.PURL(git, "pkg:maven/org.example/git-plugin@2.1")
	b.Describes(ide).Describes(cli).
		Relate(ide, common, spdx.DependsOn).
		Relate(git, ide, spdx.OptionalComponentOf).
		Relate(cli, common, spdx.DependsOn)

	sum := func(name string) spdx.Checksum {
		return spdxtest.Sum(spdx.SHA256, []byte(installFiles[name]))
	}
	b.Contains(ide, b.File("bin/ide", sum("bin/ide")))
	b.Contains(common, b.File("lib/common.so", sum("lib/common.so")))
	b.Contains(git, b.File("plugins/git.jar", sum("plugins/git.jar")))
	b.Contains(cli, b.File("bin/cli", spdxtest.Sum(spdx.SHA256, []byte("cli binary"))))

	dir := t.TempDir()
	env := &testEnv{
		manifestPath: filepath.Join(dir, "sbom.spdx.json"),
		idePath:      filepath.Join(dir, "ide"),
		cliPath:      filepath.Join(dir, "cli"),
	}
	if err := b.WriteFile(env.manifestPath); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	writeFiles(t, env.idePath, installFiles)
	writeFiles(t, env.cliPath, map[string]string{
		"bin/cli":       "cli binary",
		"lib/common.so": "common library",
	})
	return env
}

func TestRunProductPasses(t *testing.T) {
	env := newTestEnv(t)
	st := newTestStore(t)
	r := NewRunner(testConfig(), st, testLogger())

	result := r.RunProduct(context.Background(), env.manifestPath, ProductSpec{
		Name:         "ide",
		Path:         env.idePath,
		RootPackages: []string{"ide"},
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.FilesChecked != 3 {
		t.Errorf("expected 3 files checked, got %d", result.FilesChecked)
	}

	runs, err := st.ListRuns("ide", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != store.StatusPassed || run.FilesPassed != 3 || run.RootPackages != "ide" {
		t.Errorf("unexpected run record: %+v", run)
	}
	if len(run.ManifestDigest) != 64 {
		t.Errorf("expected manifest digest to be recorded, got %q", run.ManifestDigest)
	}
}

func TestRunProductRecordsFindings(t *testing.T) {
	env := newTestEnv(t)
	writeFiles(t, env.cliPath, map[string]string{
		"plugins/git.jar": installFiles["plugins/git.jar"],
		"bin/extra/ide":   "stray",
	})
	st := newTestStore(t)
	r := NewRunner(testConfig(), st, testLogger())

	result := r.RunProduct(context.Background(), env.manifestPath, ProductSpec{
		Name:         "cli",
		Path:         env.cliPath,
		RootPackages: []string{"cli"},
	})
	if result.Success {
		t.Fatal("expected failure")
	}
	if len(result.MissingFiles) != 1 || result.Unreferenced() != 1 {
		t.Fatalf("expected 1 missing and 1 unreferenced, got %d/%d", len(result.MissingFiles), result.Unreferenced())
	}

	runs, err := st.ListRuns("cli", 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %v, %v", runs, err)
	}
	if runs[0].Status != store.StatusFailed {
		t.Errorf("expected failed status, got %s", runs[0].Status)
	}
	findings, err := st.ListFindings(runs[0].ID)
	if err != nil {
		t.Fatalf("ListFindings failed: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %+v", findings)
	}
	byKind := map[string]store.Finding{}
	for _, f := range findings {
		byKind[f.Kind] = f
	}
	if f := byKind[store.FindingMissing]; f.Path != "bin/extra/ide" || !strings.Contains(f.Detail, "bin/ide in ide") {
		t.Errorf("unexpected missing finding: %+v", f)
	}
	if f := byKind[store.FindingOutOfProduct]; f.Package != "git-plugin" || f.PURL != "pkg:maven/org.example/git-plugin@2.1" {
		t.Errorf("unexpected out-of-product finding: %+v", f)
	}
}

func TestRunProductStructuralErrors(t *testing.T) {
	env := newTestEnv(t)
	notArchive := filepath.Join(t.TempDir(), "install.dat")
	if err := os.WriteFile(notArchive, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name     string
		manifest string
		spec     ProductSpec
		wantErr  string
	}{
		{
			name:     "manifest unreadable",
			manifest: filepath.Join(t.TempDir(), "missing.json"),
			spec:     ProductSpec{Name: "ide", Path: env.idePath},
			wantErr:  "manifest unreadable",
		},
		{
			name:     "root package not found",
			manifest: env.manifestPath,
			spec:     ProductSpec{Name: "ide", Path: env.idePath, RootPackages: []string{"nope"}},
			wantErr:  "root package not found",
		},
		{
			name:     "unsupported medium",
			manifest: env.manifestPath,
			spec:     ProductSpec{Name: "ide", Path: notArchive, RootPackages: []string{"ide"}},
			wantErr:  "unsupported storage medium",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			r := NewRunner(testConfig(), st, testLogger())

			result := r.RunProduct(context.Background(), tt.manifest, tt.spec)
			if result.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(result.Error, tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, result.Error)
			}
			if result.FilesChecked != 0 || len(result.MissingFiles) != 0 || len(result.FileResults) != 0 {
				t.Errorf("expected zero counts, got %+v", result)
			}

			runs, err := st.ListRuns("", 0)
			if err != nil || len(runs) != 1 || runs[0].Status != store.StatusError {
				t.Errorf("expected one error run, got %+v, %v", runs, err)
			}
		})
	}
}

func TestRunProductFromZip(t *testing.T) {
	env := newTestEnv(t)
	zipPath := filepath.Join(t.TempDir(), "ide.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range installFiles {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	_ = f.Close()

	r := NewRunner(testConfig(), nil, testLogger())
	result := r.RunProduct(context.Background(), env.manifestPath, ProductSpec{Path: zipPath, RootPackages: []string{"ide"}})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRunProductAppliesConfiguredIgnores(t *testing.T) {
	env := newTestEnv(t)
	writeFiles(t, env.idePath, map[string]string{"logs/idea.log": "log"})

	cfg := testConfig()
	cfg.Verify.Ignore = []string{"logs/**"}
	r := NewRunner(cfg, nil, testLogger())

	result := r.RunProduct(context.Background(), env.manifestPath, ProductSpec{Path: env.idePath, RootPackages: []string{"ide"}})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.IgnoredFiles) != 1 || result.IgnoredFiles[0] != "logs/idea.log" {
		t.Errorf("unexpected ignored files: %v", result.IgnoredFiles)
	}
}

func TestRunBatchContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	st := newTestStore(t)
	r := NewRunner(testConfig(), st, testLogger())

	batch := &config.Batch{
		Products: []config.ProductConfig{
			{Name: "broken", Path: filepath.Join(t.TempDir(), "gone"), RootPackages: []string{"ide"}},
			{Name: "ide", Path: env.idePath, RootPackages: []string{"ide"}},
			{Name: "cli", Path: env.cliPath, RootPackages: []string{"cli"}},
		},
		Ignores: []string{},
	}

	var seen []string
	report := r.RunBatch(context.Background(), env.manifestPath, batch, func(pr ProductResult) {
		seen = append(seen, pr.Product.Name)
	})

	if report.Success {
		t.Error("expected aggregate failure")
	}
	if strings.Join(seen, ",") != "broken,ide,cli" {
		t.Errorf("expected every product to be reported in order, got %v", seen)
	}
	if report.Products[0].Result.Success || report.Products[0].Result.Error == "" {
		t.Errorf("expected structural failure for broken product, got %+v", report.Products[0].Result)
	}
	if !report.Products[1].Result.Success || !report.Products[2].Result.Success {
		t.Errorf("expected ide and cli to pass")
	}

	runs, err := st.ListRuns("", 0)
	if err != nil || len(runs) != 3 {
		t.Errorf("expected 3 recorded runs, got %d, %v", len(runs), err)
	}
}

func TestRunBatchManifestUnreadable(t *testing.T) {
	r := NewRunner(testConfig(), nil, testLogger())
	batch := &config.Batch{Products: []config.ProductConfig{{Name: "a", Path: t.TempDir()}, {Name: "b", Path: t.TempDir()}}}

	report := r.RunBatch(context.Background(), filepath.Join(t.TempDir(), "none.json"), batch, nil)
	if report.Success || len(report.Products) != 2 {
		t.Fatalf("expected two failed products, got %+v", report)
	}
	for _, pr := range report.Products {
		if !strings.Contains(pr.Result.Error, "manifest unreadable") {
			t.Errorf("expected manifest error, got %q", pr.Result.Error)
		}
	}
}

func TestProductSpecDisplayName(t *testing.T) {
	if got := (ProductSpec{Name: "ide", Path: "/opt/ide"}).DisplayName(); got != "ide" {
		t.Errorf("got %q", got)
	}
	if got := (ProductSpec{Path: "/opt/ide"}).DisplayName(); got != "/opt/ide" {
		t.Errorf("got %q", got)
	}
}
