package verify

import (
	"github.com/BadgerOps/sbomcheck/internal/manifest"
)

// Result is the outcome of verifying one installation against one product.
type Result struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	FilesChecked int           `json:"filesChecked"`
	IgnoredFiles []string      `json:"ignoredFiles"`
	MissingFiles []MissingFile `json:"missingFiles"`
	FileResults  []FileResult  `json:"fileResults"`
}

// Failed returns a structural failure with zero counts.
func Failed(err error) *Result {
	return &Result{
		Success:      false,
		Error:        err.Error(),
		IgnoredFiles: []string{},
		MissingFiles: []MissingFile{},
		FileResults:  []FileResult{},
	}
}

// Mismatched counts files whose checksums did not match any candidate.
func (r *Result) Mismatched() int {
	n := 0
	for _, f := range r.FileResults {
		if f.HashFailure != nil {
			n++
		}
	}
	return n
}

// Unreferenced counts files found only in packages outside the product.
func (r *Result) Unreferenced() int {
	n := 0
	for _, f := range r.FileResults {
		if f.OutOfProduct != nil {
			n++
		}
	}
	return n
}

// Passed counts files that verified successfully.
func (r *Result) Passed() int {
	n := 0
	for _, f := range r.FileResults {
		if f.Success {
			n++
		}
	}
	return n
}

// Candidate is a manifest file entry together with its declaring package.
type Candidate struct {
	Path        string `json:"path"`
	FileID      string `json:"fileId"`
	PackageID   string `json:"packageId"`
	PackageName string `json:"packageName"`
	PURL        string `json:"purl,omitempty"`
}

func candidateFrom(a manifest.FileAssociation) Candidate {
	c := Candidate{
		Path:        a.Path,
		FileID:      a.File.SPDXID,
		PackageID:   a.Package.SPDXID,
		PackageName: a.Package.Name,
	}
	if purl, ok := a.Package.PURL(); ok {
		c.PURL = purl.ToString()
	}
	return c
}

// Label names the candidate for reports.
func (c Candidate) Label() string {
	if c.PURL != "" {
		return c.Path + " in " + c.PackageName + " (" + c.PURL + ")"
	}
	return c.Path + " in " + c.PackageName
}

// MissingFile is an installed file with no manifest entry at its path.
// Candidates share its bare file name and are a diagnostic aid only.
type MissingFile struct {
	Path       string      `json:"path"`
	Candidates []Candidate `json:"candidates"`
}

// FileResult is the verdict for one installed file that the manifest
// declares.
type FileResult struct {
	Path        string                   `json:"path"`
	Success     bool                     `json:"success"`
	HashFailure *HashVerificationFailure `json:"hashFailure,omitempty"`
	// OutOfProduct is set when the file verified only against a package
	// outside the product. Such a file is a failure.
	OutOfProduct *Candidate `json:"outOfProduct,omitempty"`
}

// HashVerificationFailure lists the mismatches of the last candidate tried.
type HashVerificationFailure struct {
	Candidate  Candidate      `json:"candidate"`
	Mismatches []HashMismatch `json:"mismatches"`
}

// HashMismatch is one algorithm whose computed digest differs from the
// declared one.
type HashMismatch struct {
	Algorithm string `json:"algorithm"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
}
