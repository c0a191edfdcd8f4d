// Package security confines the files a conversion reads and writes to a set
// of allowed directories.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is wrapped by every rejection from Guard.Check.
var ErrOutsideAllowedDirs = errors.New("path is outside the allowed directories")

// Canonical returns the absolute form of path with symlinks resolved. When
// path does not exist yet, the nearest existing ancestor is resolved and the
// missing components are appended to it, so a symlinked parent cannot be
// used to escape a directory.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// within reports whether the canonical path lies in the canonical dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CheckWithin returns an error unless path resolves to a location inside
// dir. dir itself must exist.
func CheckWithin(path, dir string) error {
	g, err := NewGuard([]string{dir})
	if err != nil {
		return err
	}
	return g.Check(path)
}

// Guard checks paths against a fixed list of directories.
type Guard struct {
	dirs []string
}

// NewGuard resolves dirs once up front. Every directory must exist. A guard
// built from an empty list allows every path.
func NewGuard(dirs []string) (*Guard, error) {
	g := &Guard{dirs: make([]string, 0, len(dirs))}
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve allowed directory %q: %w", d, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve allowed directory %q: %w", d, err)
		}
		g.dirs = append(g.dirs, resolved)
	}
	return g, nil
}

// Dirs returns the resolved allowed directories.
func (g *Guard) Dirs() []string {
	return g.dirs
}

// Check returns nil when path is allowed, or an error wrapping
// ErrOutsideAllowedDirs.
func (g *Guard) Check(path string) error {
	if g == nil || len(g.dirs) == 0 {
		return nil
	}
	canonical, err := Canonical(path)
	if err != nil {
		return err
	}
	for _, dir := range g.dirs {
		if within(canonical, dir) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w %v", path, ErrOutsideAllowedDirs, g.dirs)
}
