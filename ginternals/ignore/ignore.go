// Package ignore implements a gitignore-style pattern matcher used to
// decide whether a working-tree path should be skipped by status and
// other working-tree operations.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// pattern represents a single rule parsed out of a .gitignore file
type pattern struct {
	// dir is the slash-separated path, relative to the worktree root,
	// of the directory that contains the .gitignore this pattern came
	// from. Empty for the root .gitignore.
	dir      string
	negate   bool
	anchored bool
	dirOnly  bool
	segments []string
}

// Matcher decides whether a working-tree path is ignored, based on
// the accumulated content of every .gitignore found under a worktree
type Matcher struct {
	root       string
	ignoreCase bool
	patterns   []pattern
}

// New returns a Matcher for the worktree rooted at root. ignoreCase
// mirrors core.ignorecase: when true, pattern matching folds case.
func New(root string, ignoreCase bool) *Matcher {
	return &Matcher{
		root:       root,
		ignoreCase: ignoreCase,
	}
}

// Init walks the worktree once, reading every .gitignore it finds
// (skipping the contents of directories already ignored), and
// accumulates their patterns in encounter order
func (m *Matcher) Init(fs afero.Fs) error {
	return afero.Walk(fs, m.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		rel, relErr := filepath.Rel(m.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if m.IsIgnored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Base(path) != ".gitignore" {
			return nil
		}

		data, readErr := afero.ReadFile(fs, path)
		if readErr != nil {
			return readErr
		}
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			dir = ""
		}
		m.parseFile(dir, data)
		return nil
	})
}

// IsIgnored returns whether path, relative to the worktree root, is
// ignored. isDir tells the matcher whether path names a directory, so
// that directory-only patterns (a trailing "/" in the .gitignore) don't
// also swallow a plain file of the same name. ".git" is always ignored,
// regardless of any .gitignore. When more than one pattern matches, the
// last one accumulated wins, so a later "!pattern" can un-ignore what an
// earlier pattern matched.
func (m *Matcher) IsIgnored(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	if path == ".git" || strings.HasPrefix(path, ".git/") {
		return true
	}

	ignored := false
	for _, p := range m.patterns {
		if p.matches(path, isDir, m.ignoreCase) {
			ignored = !p.negate
		}
	}
	return ignored
}

// matches reports whether path (relative to the worktree root) is
// matched by p. Every segment of path but the last is necessarily a
// directory (it has a child); only the last segment's kind depends on
// isDir, which is what a dirOnly pattern needs to check.
func (p pattern) matches(path string, isDir bool, ignoreCase bool) bool {
	rel := path
	if p.dir != "" {
		prefix := p.dir + "/"
		if !strings.HasPrefix(path, prefix) {
			return false
		}
		rel = strings.TrimPrefix(path, prefix)
	}
	if rel == "" {
		return false
	}
	segs := strings.Split(rel, "/")
	segIsDir := func(i int) bool {
		if i < len(segs)-1 {
			return true
		}
		return isDir
	}

	if p.anchored {
		if len(p.segments) > len(segs) {
			return false
		}
		for i, ps := range p.segments {
			if !matchSegment(ps, segs[i], ignoreCase) {
				return false
			}
		}
		matchedLast := len(p.segments) - 1
		return !p.dirOnly || segIsDir(matchedLast)
	}

	// a pattern with no slash (other than a trailing one, already
	// stripped into dirOnly) matches at any depth under its anchor dir
	ps := p.segments[0]
	for i, s := range segs {
		if matchSegment(ps, s, ignoreCase) {
			if p.dirOnly && !segIsDir(i) {
				continue
			}
			return true
		}
	}
	return false
}

func matchSegment(pattern, name string, ignoreCase bool) bool {
	if ignoreCase {
		pattern = strings.ToLower(pattern)
		name = strings.ToLower(name)
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// parseFile parses the content of a .gitignore found in dir and
// appends its patterns to the matcher
func (m *Matcher) parseFile(dir string, data []byte) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = trimTrailingUnescapedSpace(line)
		if line == "" {
			continue
		}

		negate := false
		if strings.HasPrefix(line, "!") {
			negate = true
			line = line[1:]
		}
		if strings.HasPrefix(line, "\\") {
			line = line[1:]
		}

		dirOnly := false
		if strings.HasSuffix(line, "/") {
			dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if line == "" {
			continue
		}

		leadingSlash := strings.HasPrefix(line, "/")
		trimmed := strings.TrimPrefix(line, "/")
		anchored := leadingSlash || strings.Contains(trimmed, "/")

		m.patterns = append(m.patterns, pattern{
			dir:      dir,
			negate:   negate,
			anchored: anchored,
			dirOnly:  dirOnly,
			segments: strings.Split(trimmed, "/"),
		})
	}
}

// trimTrailingUnescapedSpace trims trailing spaces from a pattern
// unless the last space is escaped with a backslash, in which case the
// backslash is consumed and the space kept
func trimTrailingUnescapedSpace(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		if len(s) >= 2 && s[len(s)-2] == '\\' {
			return s[:len(s)-2] + " "
		}
		s = s[:len(s)-1]
	}
	return s
}
