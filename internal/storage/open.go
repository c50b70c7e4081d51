package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Medium is the detected kind of an installation path.
type Medium int

const (
	MediumUnknown Medium = iota
	MediumDirectory
	MediumZip
	MediumTar
	MediumTarGzip
	MediumTarZstd
	MediumTarXz
)

func (m Medium) String() string {
	switch m {
	case MediumDirectory:
		return "directory"
	case MediumZip:
		return "zip"
	case MediumTar:
		return "tar"
	case MediumTarGzip:
		return "tar.gz"
	case MediumTarZstd:
		return "tar.zst"
	case MediumTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic       = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	ustarMagic    = []byte("ustar")
)

// ustarOffset is where POSIX and GNU tar headers carry their magic.
const ustarOffset = 257

// Detect inspects path and reports its medium by content, not by extension.
func Detect(path string) (Medium, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediumUnknown, fmt.Errorf("%w: %s: %v", ErrUnsupportedMedium, path, err)
	}
	if info.IsDir() {
		return MediumDirectory, nil
	}
	if !info.Mode().IsRegular() {
		return MediumUnknown, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedMedium, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return MediumUnknown, fmt.Errorf("%w: %s: %v", ErrUnsupportedMedium, path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return MediumUnknown, ioError("reading header of", path, err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, zipEmptyMagic):
		return MediumZip, nil
	case bytes.HasPrefix(header, gzipMagic):
		return MediumTarGzip, nil
	case bytes.HasPrefix(header, zstdMagic):
		return MediumTarZstd, nil
	case bytes.HasPrefix(header, xzMagic):
		return MediumTarXz, nil
	case len(header) >= ustarOffset+len(ustarMagic) && bytes.Equal(header[ustarOffset:ustarOffset+len(ustarMagic)], ustarMagic):
		return MediumTar, nil
	}
	return MediumUnknown, fmt.Errorf("%w: %s is neither a directory nor a supported archive", ErrUnsupportedMedium, path)
}

// Open detects the medium at path and returns the matching provider. The
// caller must Close it.
func Open(ctx context.Context, path string, logger *slog.Logger) (Provider, error) {
	medium, err := Detect(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening installation", "path", path, "medium", medium.String())

	switch medium {
	case MediumDirectory:
		return asProvider(NewDirectory(path, logger))
	case MediumZip:
		return asProvider(OpenZip(path, logger))
	case MediumTar:
		return asProvider(OpenTar(ctx, path, CompressionNone, logger))
	case MediumTarGzip:
		return asProvider(OpenTar(ctx, path, CompressionGzip, logger))
	case MediumTarZstd:
		return asProvider(OpenTar(ctx, path, CompressionZstd, logger))
	case MediumTarXz:
		return asProvider(OpenTar(ctx, path, CompressionXz, logger))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedium, path)
	}
}

// asProvider keeps a failed constructor from yielding a non-nil interface
// around a nil pointer.
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// With opens the installation at path, runs fn and always closes the
// provider. A close error is returned only when fn succeeded.
func With(ctx context.Context, path string, logger *slog.Logger, fn func(Provider) error) (err error) {
	p, err := Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil && err == nil {
			err = ioError("closing", path, closeErr)
		}
	}()
	return fn(p)
}
