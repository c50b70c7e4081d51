package storage

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/safety"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies the stream wrapping a tar archive.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXz
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionXz:
		return "xz"
	default:
		return "none"
	}
}

type digestTable = map[spdx.ChecksumAlgorithm][]byte

// Tar serves files from a tar stream, optionally gzip, zstd or xz compressed.
// A tar stream has no random access, so OpenTar reads the archive once and
// records every supported digest of every regular entry. Later calls only
// read that table.
//
// The table mirrors an extraction: a name written twice keeps its last
// entry, hard links carry their target's digests as of the link, and
// symbolic links are resolved inside the archive.
type Tar struct {
	path    string
	entries *archiveEntries[digestTable]
	names   []string
	logger  *slog.Logger
}

// OpenTar scans the archive at path.
func OpenTar(ctx context.Context, path string, compression Compression, logger *slog.Logger) (*Tar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrUnsupportedMedium, path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var r io.Reader = f
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: creating gzip reader for %s: %v", ErrUnsupportedMedium, path, err)
		}
		defer func() {
			_ = gz.Close()
		}()
		r = gz
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: creating zstd reader for %s: %v", ErrUnsupportedMedium, path, err)
		}
		defer zr.Close()
		r = zr
	case CompressionXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: creating xz reader for %s: %v", ErrUnsupportedMedium, path, err)
		}
		r = xr
	}

	t := &Tar{
		path:    path,
		entries: newArchiveEntries[digestTable](),
		logger:  logger,
	}
	if err := t.scan(ctx, tar.NewReader(r)); err != nil {
		return nil, err
	}
	t.entries.resolve(logger)
	t.names = t.entries.names()

	logger.Debug("tar archive indexed", "path", path, "compression", compression.String(), "entries", len(t.names))
	return t, nil
}

func (t *Tar) scan(ctx context.Context, tr *tar.Reader) error {
	for first := true; ; first = false {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if first && errors.Is(err, tar.ErrHeader) {
				return fmt.Errorf("%w: %s is not a tar archive", ErrUnsupportedMedium, t.path)
			}
			return ioError("reading tar entry in", t.path, err)
		}

		switch header.Typeflag {
		case tar.TypeReg, tar.TypeLink, tar.TypeSymlink, tar.TypeDir:
		default:
			t.logger.Warn("skipping special tar entry", "entry", header.Name, "type", string(header.Typeflag))
			continue
		}
		name, err := safety.CleanRelativePath(header.Name)
		if err != nil {
			t.logger.Warn("skipping tar entry with unsafe path", "entry", header.Name, "error", err)
			continue
		}
		if header.Typeflag == tar.TypeDir {
			t.entries.addDir(name)
			continue
		}
		if t.entries.has(name) {
			t.logger.Warn("duplicate tar entry, keeping the last", "entry", name)
		}

		switch header.Typeflag {
		case tar.TypeLink:
			// Hard link names are relative to the archive root.
			target, err := safety.CleanRelativePath(header.Linkname)
			if err != nil {
				t.entries.setBroken(name, fmt.Errorf("hard link target %q: %v", header.Linkname, err))
				continue
			}
			if sums, ok := t.entries.files[target]; ok {
				t.entries.setFile(name, sums)
			} else {
				t.entries.setLink(name, target)
			}
		case tar.TypeSymlink:
			target, err := symlinkTarget(name, header.Linkname)
			if err != nil {
				t.entries.setBroken(name, err)
				continue
			}
			t.entries.setLink(name, target)
		default:
			sums, err := hashReader(ctx, tr, SupportedAlgorithms)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				return ioError("reading tar entry", name, err)
			}
			t.entries.setFile(name, sums)
		}
	}
}

// ListFiles returns every file the archive would leave on disk, links
// included.
func (t *Tar) ListFiles(ignore *glob.Set) ([]string, []string, error) {
	files := []string{}
	ignored := []string{}
	for _, name := range t.names {
		if glob.IsIgnored(name, ignore) {
			ignored = append(ignored, name)
		} else {
			files = append(files, name)
		}
	}
	return files, ignored, nil
}

// ComputeHashes returns the digests recorded when the archive was scanned.
func (t *Tar) ComputeHashes(ctx context.Context, path string, algs []spdx.ChecksumAlgorithm) (map[spdx.ChecksumAlgorithm][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckAlgorithms(algs); err != nil {
		return nil, err
	}
	name, err := safety.CleanRelativePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	recorded, err := t.entries.lookup(name)
	if err != nil {
		return nil, err
	}

	sums := make(map[spdx.ChecksumAlgorithm][]byte, len(algs))
	for _, alg := range algs {
		canonical, _ := canonicalAlgorithm(alg)
		sum := recorded[canonical]
		sums[alg] = append([]byte(nil), sum...)
	}
	return sums, nil
}

// Close is a no-op; the archive is closed once scanned.
func (t *Tar) Close() error {
	return nil
}
