package storage

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/safety"
)

// maxLinkHops bounds symlink chains inside an archive.
const maxLinkHops = 40

// archiveEntries tracks what an archive leaves behind once extracted: the
// last entry written at a name wins, links point at other entries, and links
// that cannot be resolved inside the archive are kept as broken entries so
// they fail instead of vanishing.
type archiveEntries[V any] struct {
	files  map[string]V
	links  map[string]string
	broken map[string]error
	dirs   map[string]bool
}

func newArchiveEntries[V any]() *archiveEntries[V] {
	return &archiveEntries[V]{
		files:  make(map[string]V),
		links:  make(map[string]string),
		broken: make(map[string]error),
		dirs:   make(map[string]bool),
	}
}

func (a *archiveEntries[V]) forget(name string) {
	delete(a.files, name)
	delete(a.links, name)
	delete(a.broken, name)
}

func (a *archiveEntries[V]) has(name string) bool {
	_, file := a.files[name]
	_, link := a.links[name]
	_, broken := a.broken[name]
	return file || link || broken
}

func (a *archiveEntries[V]) setFile(name string, v V) {
	a.forget(name)
	a.files[name] = v
}

// setLink records a link entry whose target is already relative to the
// archive root. An empty target is the archive root itself.
func (a *archiveEntries[V]) setLink(name, target string) {
	a.forget(name)
	a.links[name] = target
}

// addDir records an explicit directory entry.
func (a *archiveEntries[V]) addDir(name string) {
	a.dirs[name] = true
}

func (a *archiveEntries[V]) isDir(name string) bool {
	if name == "" || a.dirs[name] {
		return true
	}
	prefix := name + "/"
	for file := range a.files {
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	return false
}

func (a *archiveEntries[V]) setBroken(name string, err error) {
	a.forget(name)
	a.broken[name] = err
}

// symlinkTarget resolves a symbolic link's text against the directory of the
// entry that holds it.
func symlinkTarget(name, linkname string) (string, error) {
	if linkname == "" {
		return "", fmt.Errorf("empty link target")
	}
	if strings.HasPrefix(linkname, "/") {
		return "", fmt.Errorf("absolute link target %q", linkname)
	}
	joined := path.Join(path.Dir(name), linkname)
	if joined == "." {
		return "", nil
	}
	target, err := safety.CleanRelativePath(joined)
	if err != nil {
		return "", fmt.Errorf("link target %q leaves the archive: %v", linkname, err)
	}
	return target, nil
}

// resolve replaces every link with the entry it reaches. Links to
// directories expose the directory's files under the link's name. Links
// that reach nothing become broken entries.
func (a *archiveEntries[V]) resolve(logger *slog.Logger) {
	names := make([]string, 0, len(a.links))
	for name := range a.links {
		names = append(names, name)
	}
	sort.Strings(names)

	dirLinks := map[string]string{}
	for _, name := range names {
		cur := a.links[name]
		resolved := false
		for hop := 0; hop < maxLinkHops; hop++ {
			if v, ok := a.files[cur]; ok {
				a.files[name] = v
				resolved = true
				break
			}
			next, ok := a.links[cur]
			if !ok {
				break
			}
			cur = next
		}
		if !resolved {
			dirLinks[name] = cur
		}
	}

	for _, name := range names {
		dir, ok := dirLinks[name]
		if !ok {
			continue
		}
		prefix := ""
		if dir != "" {
			prefix = dir + "/"
		}
		own := name + "/"

		aliases := map[string]V{}
		for file, v := range a.files {
			if !strings.HasPrefix(file, prefix) || strings.HasPrefix(file, own) {
				continue
			}
			alias := own + strings.TrimPrefix(file, prefix)
			if _, exists := a.files[alias]; !exists {
				aliases[alias] = v
			}
		}
		if len(aliases) == 0 {
			if !a.isDir(dir) {
				a.broken[name] = fmt.Errorf("link target %q is not in the archive", dir)
			}
			continue
		}
		for alias, v := range aliases {
			a.files[alias] = v
		}
		logger.Debug("expanded directory link", "entry", name, "target", dir, "files", len(aliases))
	}
	a.links = map[string]string{}

	for name, err := range a.broken {
		logger.Warn("archive entry cannot be read", "entry", name, "error", err)
	}
}

// names returns every listable entry, broken ones included, sorted.
func (a *archiveEntries[V]) names() []string {
	out := make([]string, 0, len(a.files)+len(a.broken))
	for name := range a.files {
		out = append(out, name)
	}
	for name := range a.broken {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// lookup returns the entry at name, or ErrFileNotFound with the reason a
// broken entry could not be read.
func (a *archiveEntries[V]) lookup(name string) (V, error) {
	if v, ok := a.files[name]; ok {
		return v, nil
	}
	var zero V
	if err, ok := a.broken[name]; ok {
		return zero, fmt.Errorf("%w: %s: %v", ErrFileNotFound, name, err)
	}
	return zero, notFound(name)
}
