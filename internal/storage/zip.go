package storage

import (
	"archive/zip"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/safety"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// maxZipLinkSize caps how much of a symlink entry is read as its target.
const maxZipLinkSize = 4096

// Zip serves files from a zip archive. Each ComputeHashes call opens its own
// entry stream over the shared file, so concurrent callers never share a
// read position. As with tar, a repeated name keeps its last entry and
// symbolic links are resolved inside the archive.
type Zip struct {
	path    string
	rc      *zip.ReadCloser
	entries *archiveEntries[*zip.File]
	names   []string
	logger  *slog.Logger
}

// OpenZip opens the archive at path and indexes its entries.
func OpenZip(path string, logger *slog.Logger) (*Zip, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening zip %s: %v", ErrUnsupportedMedium, path, err)
	}

	z := &Zip{
		path:    path,
		rc:      rc,
		entries: newArchiveEntries[*zip.File](),
		logger:  logger,
	}
	for _, f := range rc.File {
		isDir := f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/")
		mode := f.Mode()
		if !isDir && !mode.IsRegular() && mode&fs.ModeSymlink == 0 {
			logger.Warn("skipping special zip entry", "entry", f.Name, "mode", mode.String())
			continue
		}
		name, err := safety.CleanRelativePath(f.Name)
		if err != nil {
			logger.Warn("skipping zip entry with unsafe path", "entry", f.Name, "error", err)
			continue
		}
		if isDir {
			z.entries.addDir(name)
			continue
		}
		if z.entries.has(name) {
			logger.Warn("duplicate zip entry, keeping the last", "entry", name)
		}

		if mode&fs.ModeSymlink == 0 {
			z.entries.setFile(name, f)
			continue
		}
		linkname, err := readZipLink(f)
		if err != nil {
			_ = rc.Close()
			return nil, ioError("reading link entry", name, err)
		}
		target, err := symlinkTarget(name, linkname)
		if err != nil {
			z.entries.setBroken(name, err)
			continue
		}
		z.entries.setLink(name, target)
	}
	z.entries.resolve(logger)
	z.names = z.entries.names()

	logger.Debug("zip archive indexed", "path", path, "entries", len(z.names))
	return z, nil
}

// ListFiles returns every file the archive would leave on disk, links
// included.
func (z *Zip) ListFiles(ignore *glob.Set) ([]string, []string, error) {
	files := []string{}
	ignored := []string{}
	for _, name := range z.names {
		if glob.IsIgnored(name, ignore) {
			ignored = append(ignored, name)
		} else {
			files = append(files, name)
		}
	}
	return files, ignored, nil
}

// ComputeHashes decompresses the entry at path once.
func (z *Zip) ComputeHashes(ctx context.Context, path string, algs []spdx.ChecksumAlgorithm) (map[spdx.ChecksumAlgorithm][]byte, error) {
	if err := CheckAlgorithms(algs); err != nil {
		return nil, err
	}
	name, err := safety.CleanRelativePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	f, err := z.entries.lookup(name)
	if err != nil {
		return nil, err
	}

	r, err := f.Open()
	if err != nil {
		return nil, ioError("opening entry", path, err)
	}
	defer func() {
		_ = r.Close()
	}()

	sums, err := hashReader(ctx, r, algs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ioError("reading entry", path, err)
	}
	return sums, nil
}

func readZipLink(f *zip.File) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = r.Close()
	}()
	data, err := safety.ReadAllWithLimit(r, maxZipLinkSize)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close releases the archive file.
func (z *Zip) Close() error {
	return z.rc.Close()
}
