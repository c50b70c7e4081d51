// Package verify reconciles the files of an installation against the file
// entries of a manifest, limited to the packages of one product.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/manifest"
	"github.com/BadgerOps/sbomcheck/internal/product"
	"github.com/BadgerOps/sbomcheck/internal/storage"
)

// DefaultWorkers is the number of files verified concurrently when Options
// leaves Workers unset.
const DefaultWorkers = 10

// Progress reports how many of Total files have been checked so far.
type Progress struct {
	Total   int
	Checked int
	Failed  int
}

// Options configures an Engine.
type Options struct {
	// Workers bounds concurrent file checks. 1 verifies sequentially.
	Workers int
	// Progress, when set, is called after each file from a single
	// goroutine.
	Progress func(Progress)
}

// Engine verifies installations. It holds no per-run state and can be
// reused.
type Engine struct {
	workers  int
	progress func(Progress)
	logger   *slog.Logger
}

// New creates an Engine.
func New(opts Options, logger *slog.Logger) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{
		workers:  workers,
		progress: opts.Progress,
		logger:   logger,
	}
}

// Workers returns the configured parallelism.
func (e *Engine) Workers() int {
	return e.workers
}

// outcome is the verdict for one installed file: exactly one field is set.
type outcome struct {
	missing *MissingFile
	file    *FileResult
}

func (o outcome) failed() bool {
	return o.missing != nil || (o.file != nil && !o.file.Success)
}

// Verify checks every file provider lists, except those matched by ignore,
// against the manifest entries of the packages in products. Content
// discrepancies are reported in the Result; an error means the run could
// not complete.
func (e *Engine) Verify(ctx context.Context, ix *manifest.Index, products *product.Set, provider storage.Provider, ignore *glob.Set) (*Result, error) {
	start := time.Now()

	files, ignored, err := provider.ListFiles(ignore)
	if err != nil {
		return nil, fmt.Errorf("listing installed files: %w", err)
	}
	e.logger.Info("verifying installation",
		"files", len(files),
		"ignored", len(ignored),
		"packages", products.Len(),
		"workers", e.workers,
	)

	outcomes, err := e.run(ctx, files, func(ctx context.Context, p string) (outcome, error) {
		return e.checkFile(ctx, ix, products, provider, p)
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		FilesChecked: len(files),
		IgnoredFiles: ignored,
		MissingFiles: []MissingFile{},
		FileResults:  []FileResult{},
	}
	if result.IgnoredFiles == nil {
		result.IgnoredFiles = []string{}
	}
	for _, o := range outcomes {
		switch {
		case o.missing != nil:
			result.MissingFiles = append(result.MissingFiles, *o.missing)
		case o.file != nil:
			result.FileResults = append(result.FileResults, *o.file)
		}
	}
	sort.Slice(result.MissingFiles, func(i, j int) bool {
		return result.MissingFiles[i].Path < result.MissingFiles[j].Path
	})
	sort.Slice(result.FileResults, func(i, j int) bool {
		return result.FileResults[i].Path < result.FileResults[j].Path
	})

	result.Success = len(result.MissingFiles) == 0 && result.Passed() == len(result.FileResults)

	e.logger.Info("verification finished",
		"success", result.Success,
		"checked", result.FilesChecked,
		"missing", len(result.MissingFiles),
		"mismatched", result.Mismatched(),
		"unreferenced", result.Unreferenced(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// checkFile produces the verdict for the installed file at p.
func (e *Engine) checkFile(ctx context.Context, ix *manifest.Index, products *product.Set, provider storage.Provider, p string) (outcome, error) {
	assocs := ix.ByPath(p)
	if len(assocs) == 0 {
		return outcome{missing: missingFile(ix, p)}, nil
	}

	var referenced, unreferenced []manifest.FileAssociation
	for _, a := range assocs {
		if products.Contains(a.Package.SPDXID) {
			referenced = append(referenced, a)
		} else {
			unreferenced = append(unreferenced, a)
		}
	}

	computed, err := provider.ComputeHashes(ctx, p, distinctAlgorithms(assocs))
	if err != nil {
		return outcome{}, err
	}

	if len(referenced) > 0 {
		var failure *HashVerificationFailure
		for _, a := range referenced {
			failure, err = compareAssociation(a, computed)
			if err != nil {
				return outcome{}, err
			}
			if failure == nil {
				break
			}
		}
		return outcome{file: &FileResult{Path: p, Success: failure == nil, HashFailure: failure}}, nil
	}

	var failure *HashVerificationFailure
	for _, a := range unreferenced {
		failure, err = compareAssociation(a, computed)
		if err != nil {
			return outcome{}, err
		}
		if failure == nil {
			c := candidateFrom(a)
			e.logger.Debug("file verified only outside the product", "path", p, "package", a.Package.Name)
			return outcome{file: &FileResult{Path: p, Success: false, OutOfProduct: &c}}, nil
		}
	}
	return outcome{file: &FileResult{Path: p, Success: false, HashFailure: failure}}, nil
}

// missingFile lists manifest entries elsewhere that share the bare name of p.
func missingFile(ix *manifest.Index, p string) *MissingFile {
	same := ix.ByFileName(path.Base(manifest.NormalizePath(p)))
	candidates := make([]Candidate, 0, len(same))
	for _, a := range same {
		candidates = append(candidates, candidateFrom(a))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Path != candidates[j].Path {
			return candidates[i].Path < candidates[j].Path
		}
		return candidates[i].PackageName < candidates[j].PackageName
	})
	return &MissingFile{Path: p, Candidates: candidates}
}
