// Package storage reads installed files from a directory or an archive.
// Every backend satisfies Provider, so callers never depend on the medium.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

var (
	// ErrUnsupportedMedium is returned when an installation path is neither
	// a directory nor a readable archive.
	ErrUnsupportedMedium = errors.New("unsupported storage medium")
	// ErrUnsupportedAlgorithm is returned for checksum algorithms the
	// providers cannot compute.
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
	// ErrFileNotFound is returned when a requested path is not present.
	ErrFileNotFound = errors.New("file not found in storage")
	// ErrStorageIO wraps read failures of the underlying medium.
	ErrStorageIO = errors.New("storage i/o error")
)

// Provider enumerates and hashes the files of one installation. Paths are
// relative, '/'-separated and cleaned. Implementations are safe for
// concurrent ListFiles and ComputeHashes calls.
type Provider interface {
	// ListFiles returns the present files and, separately, the files
	// excluded by ignore. Both lists are sorted.
	ListFiles(ignore *glob.Set) (files, ignored []string, err error)
	// ComputeHashes digests the file at path with every algorithm in algs
	// using a single read of its content.
	ComputeHashes(ctx context.Context, path string, algs []spdx.ChecksumAlgorithm) (map[spdx.ChecksumAlgorithm][]byte, error)
	// Close releases the underlying handles.
	Close() error
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

func ioError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrStorageIO, op, path, err)
}
