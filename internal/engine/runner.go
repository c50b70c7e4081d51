// Package engine runs product verifications end to end: it loads the
// manifest, resolves each product, opens its installation, verifies it and
// records the outcome in the run history.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BadgerOps/sbomcheck/internal/config"
	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/manifest"
	"github.com/BadgerOps/sbomcheck/internal/product"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
	"github.com/BadgerOps/sbomcheck/internal/storage"
	"github.com/BadgerOps/sbomcheck/internal/store"
	"github.com/BadgerOps/sbomcheck/internal/verify"
)

// ProductSpec describes one product to verify.
type ProductSpec struct {
	Name         string   `json:"name,omitempty"`
	Path         string   `json:"path"`
	RootPackages []string `json:"rootPackages,omitempty"`
	// Ignore is appended to the configured ignore patterns.
	Ignore []string `json:"ignore,omitempty"`
}

// DisplayName is the product name, or its path when unnamed.
func (s ProductSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// Manifest is a parsed and indexed manifest shared by every product of one
// invocation.
type Manifest struct {
	Path     string
	Document *spdx.Document
	Index    *manifest.Index
}

// Runner verifies products against a manifest.
type Runner struct {
	config   *config.Config
	store    *store.Store
	verifier *verify.Engine
	logger   *slog.Logger
}

// NewRunner creates a Runner. A nil store disables run history.
func NewRunner(cfg *config.Config, st *store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Runner{
		config: cfg,
		store:  st,
		logger: logger,
	}
	r.verifier = verify.New(verify.Options{
		Workers:  cfg.Verify.Workers,
		Progress: r.logProgress,
	}, logger)
	return r
}

// LoadManifest reads, validates and indexes the manifest at path.
func (r *Runner) LoadManifest(path string) (*Manifest, error) {
	doc, err := spdx.Read(path, int64(r.config.Verify.MaxManifestSize))
	if err != nil {
		return nil, err
	}
	ix, err := manifest.Build(doc, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("manifest loaded", "path", path, "digest", doc.Digest, "packages", len(doc.Packages), "files", len(doc.Files))
	return &Manifest{Path: path, Document: doc, Index: ix}, nil
}

// RunProduct verifies one product. It never fails: any error is returned as
// a failed Result carrying the message and zero counts.
func (r *Runner) RunProduct(ctx context.Context, manifestPath string, spec ProductSpec) *verify.Result {
	m, err := r.LoadManifest(manifestPath)
	return r.run(ctx, manifestPath, m, err, spec)
}

// ProductResult pairs a product with its verification result.
type ProductResult struct {
	Product ProductSpec    `json:"product"`
	Result  *verify.Result `json:"result"`
}

// BatchReport holds the per-product results of a batch run.
type BatchReport struct {
	Success  bool            `json:"success"`
	Products []ProductResult `json:"products"`
}

// RunBatch verifies each product of batch in order against one manifest.
// A failed product never stops the next one. onResult, when set, is called
// after each product.
func (r *Runner) RunBatch(ctx context.Context, manifestPath string, batch *config.Batch, onResult func(ProductResult)) *BatchReport {
	m, loadErr := r.LoadManifest(manifestPath)

	report := &BatchReport{Success: true, Products: make([]ProductResult, 0, len(batch.Products))}
	for _, p := range batch.Products {
		spec := ProductSpec{
			Name:         p.Name,
			Path:         p.Path,
			RootPackages: p.RootPackages,
			Ignore:       batch.Ignores,
		}
		r.logger.Info("checking product", "product", spec.DisplayName())

		pr := ProductResult{Product: spec, Result: r.run(ctx, manifestPath, m, loadErr, spec)}
		report.Products = append(report.Products, pr)
		report.Success = report.Success && pr.Result.Success
		if onResult != nil {
			onResult(pr)
		}
	}
	return report
}

// run is the per-product boundary shared by RunProduct and RunBatch.
func (r *Runner) run(ctx context.Context, manifestPath string, m *Manifest, loadErr error, spec ProductSpec) *verify.Result {
	start := time.Now()

	var result *verify.Result
	err := loadErr
	if err == nil {
		result, err = r.verifyProduct(ctx, m, spec)
	}
	if err != nil {
		r.logger.Error("product verification failed", "product", spec.DisplayName(), "error", err)
		result = verify.Failed(err)
	}

	digest := ""
	if m != nil {
		digest = m.Document.Digest
	}
	r.record(manifestPath, digest, spec, start, result)
	return result
}

func (r *Runner) verifyProduct(ctx context.Context, m *Manifest, spec ProductSpec) (*verify.Result, error) {
	products, err := product.Resolve(m.Index, spec.RootPackages, r.logger)
	if err != nil {
		return nil, err
	}

	opts, err := r.config.GlobOptions()
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(r.config.Verify.Ignore)+len(spec.Ignore))
	patterns = append(patterns, r.config.Verify.Ignore...)
	patterns = append(patterns, spec.Ignore...)
	ignore, err := glob.Compile(patterns, opts)
	if err != nil {
		return nil, fmt.Errorf("compiling ignore patterns: %w", err)
	}

	var result *verify.Result
	err = storage.With(ctx, spec.Path, r.logger, func(p storage.Provider) error {
		var verr error
		result, verr = r.verifier.Verify(ctx, m.Index, products, p, ignore)
		return verr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) logProgress(p verify.Progress) {
	if p.Checked == p.Total || p.Checked%500 == 0 {
		r.logger.Debug("verification progress", "checked", p.Checked, "total", p.Total, "failed", p.Failed)
	}
}

// record stores the run in the history. Failures are logged, never
// returned: history must not change a verification outcome.
func (r *Runner) record(manifestPath, digest string, spec ProductSpec, start time.Time, result *verify.Result) {
	if r.store == nil {
		return
	}

	run := &store.VerificationRun{
		Product:           spec.DisplayName(),
		InstallPath:       spec.Path,
		ManifestPath:      manifestPath,
		ManifestDigest:    digest,
		RootPackages:      strings.Join(spec.RootPackages, ","),
		StartTime:         start.UTC(),
		EndTime:           time.Now().UTC(),
		Status:            runStatus(result),
		FilesChecked:      result.FilesChecked,
		FilesIgnored:      len(result.IgnoredFiles),
		FilesMissing:      len(result.MissingFiles),
		FilesMismatched:   result.Mismatched(),
		FilesUnreferenced: result.Unreferenced(),
		FilesPassed:       result.Passed(),
		ErrorMessage:      result.Error,
	}
	if err := r.store.CreateRun(run, Findings(result)); err != nil {
		r.logger.Warn("failed to record verification run", "product", run.Product, "error", err)
		return
	}
	r.logger.Debug("verification run recorded", "id", run.ID, "product", run.Product, "status", run.Status)

	if days := r.config.History.RetentionDays; days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		if n, err := r.store.DeleteRunsBefore(cutoff); err != nil {
			r.logger.Warn("failed to prune run history", "error", err)
		} else if n > 0 {
			r.logger.Debug("pruned run history", "deleted", n, "before", cutoff)
		}
	}
}

func runStatus(result *verify.Result) string {
	switch {
	case result.Success:
		return store.StatusPassed
	case result.Error != "":
		return store.StatusError
	default:
		return store.StatusFailed
	}
}

// Findings flattens the discrepancies of result into history records.
func Findings(result *verify.Result) []store.Finding {
	var findings []store.Finding
	for _, m := range result.MissingFiles {
		labels := make([]string, 0, len(m.Candidates))
		for _, c := range m.Candidates {
			labels = append(labels, c.Label())
		}
		findings = append(findings, store.Finding{
			Kind:   store.FindingMissing,
			Path:   m.Path,
			Detail: strings.Join(labels, "; "),
		})
	}
	for _, f := range result.FileResults {
		switch {
		case f.HashFailure != nil:
			algs := make([]string, 0, len(f.HashFailure.Mismatches))
			for _, mm := range f.HashFailure.Mismatches {
				algs = append(algs, mm.Algorithm)
			}
			findings = append(findings, store.Finding{
				Kind:    store.FindingMismatch,
				Path:    f.Path,
				Package: f.HashFailure.Candidate.PackageName,
				PURL:    f.HashFailure.Candidate.PURL,
				Detail:  strings.Join(algs, ", "),
			})
		case f.OutOfProduct != nil:
			findings = append(findings, store.Finding{
				Kind:    store.FindingOutOfProduct,
				Path:    f.Path,
				Package: f.OutOfProduct.PackageName,
				PURL:    f.OutOfProduct.PURL,
			})
		}
	}
	return findings
}
