// Package glob compiles ignore patterns into anchored path matchers.
//
// Patterns use '/' or '\' as separators and may start with "./". "**" matches
// any run of characters including separators, "*" any run excluding
// separators, "?" exactly one character. Everything else is literal.
package glob

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// Options controls how patterns are compiled.
type Options struct {
	// CaseInsensitive makes every matcher ignore letter case.
	CaseInsensitive bool
}

// DefaultOptions returns the host filesystem policy: case-insensitive on
// windows and darwin, case-sensitive elsewhere.
func DefaultOptions() Options {
	return OptionsForOS(runtime.GOOS)
}

// OptionsForOS returns the case policy used for filesystems of goos.
func OptionsForOS(goos string) Options {
	switch goos {
	case "windows", "darwin", "ios":
		return Options{CaseInsensitive: true}
	default:
		return Options{}
	}
}

// Matcher is a single compiled ignore pattern.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Pattern returns the pattern the matcher was compiled from.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether the whole of p matches the pattern.
func (m *Matcher) Match(p string) bool {
	return m.re.MatchString(normalize(p))
}

// Set is an ordered list of compiled matchers. The zero value and nil
// match nothing.
type Set struct {
	matchers []*Matcher
}

// Compile translates each pattern into a Matcher.
func Compile(patterns []string, opts Options) (*Set, error) {
	set := &Set{matchers: make([]*Matcher, 0, len(patterns))}
	for _, pattern := range patterns {
		m, err := compileOne(pattern, opts)
		if err != nil {
			return nil, err
		}
		set.matchers = append(set.matchers, m)
	}
	return set, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(patterns []string, opts Options) *Set {
	set, err := Compile(patterns, opts)
	if err != nil {
		panic(err)
	}
	return set
}

// Matchers returns the compiled matchers in pattern order.
func (s *Set) Matchers() []*Matcher {
	if s == nil {
		return nil
	}
	return s.matchers
}

// Len returns the number of compiled patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.matchers)
}

// IsIgnored reports whether any matcher in set matches path.
func IsIgnored(path string, set *Set) bool {
	if set == nil {
		return false
	}
	p := normalize(path)
	for _, m := range set.matchers {
		if m.re.MatchString(p) {
			return true
		}
	}
	return false
}

func compileOne(pattern string, opts Options) (*Matcher, error) {
	var b strings.Builder
	if opts.CaseInsensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")

	p := []rune(normalize(pattern))
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				b.WriteString("(?s:.*)")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("(?s:.)")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling ignore pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// normalize canonicalizes separators to '/' and strips a leading "./".
func normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(p, "./")
}
