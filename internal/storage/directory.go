package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/BadgerOps/sbomcheck/internal/glob"
	"github.com/BadgerOps/sbomcheck/internal/safety"
	"github.com/BadgerOps/sbomcheck/internal/spdx"
)

// Directory serves files from an unpacked installation tree.
type Directory struct {
	root   string
	logger *slog.Logger
}

// NewDirectory returns a provider rooted at root, which must be a directory.
func NewDirectory(root string, logger *slog.Logger) (*Directory, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedMedium, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnsupportedMedium, root)
	}
	return &Directory{root: abs, logger: logger}, nil
}

// ListFiles walks the tree the way a reader of the installed product sees
// it. Symlinks to files are listed, and so are dangling ones, which then fail
// to hash. Symlinked directories are descended unless they lead back to a
// directory already on the current walk path. Sockets, pipes and devices are
// skipped.
func (d *Directory) ListFiles(ignore *glob.Set) ([]string, []string, error) {
	realRoot, err := filepath.EvalSymlinks(d.root)
	if err != nil {
		return nil, nil, ioError("resolving", d.root, err)
	}

	w := &dirWalker{
		ignore:    ignore,
		logger:    d.logger,
		ancestors: map[string]bool{realRoot: true},
		files:     []string{},
		ignored:   []string{},
	}
	if err := w.walk(d.root, "", realRoot); err != nil {
		return nil, nil, ioError("walking", d.root, err)
	}

	sort.Strings(w.files)
	sort.Strings(w.ignored)
	return w.files, w.ignored, nil
}

type dirWalker struct {
	ignore    *glob.Set
	logger    *slog.Logger
	ancestors map[string]bool
	files     []string
	ignored   []string
}

func (w *dirWalker) add(rel string) {
	if glob.IsIgnored(rel, w.ignore) {
		w.ignored = append(w.ignored, rel)
	} else {
		w.files = append(w.files, rel)
	}
}

// walk lists dir, whose slash-separated path under the root is rel and whose
// symlink-free location is resolved.
func (w *dirWalker) walk(dir, rel, resolved string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		childRel := path.Join(rel, entry.Name())
		mode := entry.Type()

		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				w.logger.Warn("listing dangling symbolic link", "path", childRel, "error", err)
				w.add(childRel)
				continue
			}
			if info.IsDir() {
				target, err := filepath.EvalSymlinks(full)
				if err != nil {
					return err
				}
				if err := w.descend(full, childRel, target); err != nil {
					return err
				}
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if err := w.descend(full, childRel, filepath.Join(resolved, entry.Name())); err != nil {
				return err
			}
		case mode.IsRegular():
			w.add(childRel)
		default:
			w.logger.Warn("skipping special file", "path", childRel, "mode", mode.String())
		}
	}
	return nil
}

func (w *dirWalker) descend(dir, rel, resolved string) error {
	if w.ancestors[resolved] {
		w.logger.Warn("symbolic link loop, not descending", "path", rel, "target", resolved)
		return nil
	}
	w.ancestors[resolved] = true
	defer delete(w.ancestors, resolved)
	return w.walk(dir, rel, resolved)
}

// ComputeHashes opens the file fresh on every call.
func (d *Directory) ComputeHashes(ctx context.Context, path string, algs []spdx.ChecksumAlgorithm) (map[spdx.ChecksumAlgorithm][]byte, error) {
	if err := CheckAlgorithms(algs); err != nil {
		return nil, err
	}
	if _, err := safety.CleanRelativePath(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	// Join the name as listed: on unix a backslash is part of the file name.
	full, err := safety.EnsureUnderRoot(d.root, filepath.Join(d.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, ioError("opening", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, ioError("stat", path, err)
	}
	if info.IsDir() {
		return nil, notFound(path)
	}

	sums, err := hashReader(ctx, f, algs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ioError("reading", path, err)
	}
	return sums, nil
}

// Close is a no-op; files are opened per call.
func (d *Directory) Close() error {
	return nil
}
