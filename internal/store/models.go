package store

import "time"

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	// StatusError marks a run that stopped on a structural error before any
	// file was judged.
	StatusError = "error"
)

// Finding kinds.
const (
	FindingMissing      = "missing"
	FindingMismatch     = "mismatch"
	FindingOutOfProduct = "out_of_product"
)

// VerificationRun records one product verification
type VerificationRun struct {
	ID                int64
	Product           string
	InstallPath       string
	ManifestPath      string
	ManifestDigest    string // sha256 of the canonical manifest JSON
	RootPackages      string // comma-separated
	StartTime         time.Time
	EndTime           time.Time
	Status            string
	FilesChecked      int
	FilesIgnored      int
	FilesMissing      int
	FilesMismatched   int
	FilesUnreferenced int
	FilesPassed       int
	ErrorMessage      string
}

// Finding is one itemized discrepancy of a run
type Finding struct {
	ID      int64
	RunID   int64
	Kind    string
	Path    string
	Package string // declaring package, empty for files missing from the manifest
	PURL    string
	Detail  string // algorithms that differ, or same-name candidates
}
