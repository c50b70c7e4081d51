package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/engine"
	"github.com/BadgerOps/sbomcheck/internal/verify"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

func checkOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputText, outputJSON)
	}
}

// printResult writes the human-readable report of one product verification.
func printResult(w io.Writer, result *verify.Result) {
	for _, m := range result.MissingFiles {
		fmt.Fprintf(w, "File %s is missing in the SBOM.", m.Path)
		if len(m.Candidates) == 0 {
			fmt.Fprintln(w, " No files with the same name in the SBOM.")
			continue
		}
		fmt.Fprintln(w, " Files with the same name:")
		for _, c := range m.Candidates {
			fmt.Fprintf(w, "    %s\n", c.Label())
		}
	}

	for _, f := range result.FileResults {
		switch {
		case f.HashFailure != nil:
			algs := make([]string, 0, len(f.HashFailure.Mismatches))
			for _, mm := range f.HashFailure.Mismatches {
				algs = append(algs, mm.Algorithm)
			}
			fmt.Fprintf(w, "File %s from package %s has %d hash mismatches: %s\n",
				f.Path, packageLabel(f.HashFailure.Candidate), len(algs), strings.Join(algs, ", "))
		case f.OutOfProduct != nil:
			fmt.Fprintf(w, "File %s was found in package %s which is not referenced by the product\n",
				f.Path, packageLabel(*f.OutOfProduct))
		}
	}

	switch {
	case result.Success:
		fmt.Fprintf(w, "Validation passed: %d files checked, %d files ignored\n",
			result.FilesChecked, len(result.IgnoredFiles))
	case result.Error != "":
		fmt.Fprintf(w, "Validation error: %s\n", result.Error)
	default:
		fmt.Fprintln(w, "Validation failed")
		fmt.Fprintf(w, "  %-14s %6d\n", "Missing:", len(result.MissingFiles))
		fmt.Fprintf(w, "  %-14s %6d\n", "Mismatched:", result.Mismatched())
		fmt.Fprintf(w, "  %-14s %6d\n", "Unreferenced:", result.Unreferenced())
		fmt.Fprintf(w, "  %-14s %6d\n", "Checked:", result.FilesChecked)
		fmt.Fprintf(w, "  %-14s %6d\n", "Passed:", result.Passed())
		fmt.Fprintf(w, "  %-14s %6d\n", "Ignored:", len(result.IgnoredFiles))
	}
}

// printProductBanner separates products in batch output.
func printProductBanner(w io.Writer, name string) {
	fmt.Fprintf(w, "\n=============== Checking product %s ===============\n", name)
}

// printBatchSummary writes one line per product after a batch run.
func printBatchSummary(w io.Writer, report *engine.BatchReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Batch Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "%-24s %-8s %8s %8s %10s %12s\n", "PRODUCT", "STATUS", "CHECKED", "MISSING", "MISMATCHED", "UNREFERENCED")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for _, p := range report.Products {
		status := "passed"
		switch {
		case p.Result.Error != "":
			status = "error"
		case !p.Result.Success:
			status = "failed"
		}
		fmt.Fprintf(w, "%-24s %-8s %8d %8d %10d %12d\n",
			p.Product.DisplayName(), status, p.Result.FilesChecked, len(p.Result.MissingFiles),
			p.Result.Mismatched(), p.Result.Unreferenced())
	}
}

func packageLabel(c verify.Candidate) string {
	if c.PURL != "" {
		return c.PackageName + " (" + c.PURL + ")"
	}
	return c.PackageName
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
