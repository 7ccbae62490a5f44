// Package fsops implements the sandboxed filesystem operations behind
// the file API: path resolution against a single root directory,
// directory listing, streaming transfers and mutations. Every operation
// takes a client-supplied relative path and works strictly beneath the
// root; escape attempts are clamped or rejected, never followed.
package fsops

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Root is the single directory all operations are confined to. It is
// created on first use and immutable for the process lifetime.
type Root struct {
	path string
}

// OpenRoot resolves dir to an absolute path and ensures it exists as a
// directory.
func OpenRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat root %s: %w", abs, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("create root %s: %w", abs, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	return &Root{path: abs}, nil
}

// Path returns the absolute root directory.
func (r *Root) Path() string { return r.path }

// Clean normalizes a client path into a slash-separated relative path
// with no leading slash. "" means the root itself. Leading ".."
// segments are clamped away rather than rejected: "../../etc" becomes
// "etc". The normalization is purely lexical; symlinks on disk are
// never consulted.
func Clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	// Cleaning against a virtual "/" resolves "." and ".." segments and
	// drops any that would climb above it.
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Resolve validates rel against the root and returns the confined
// absolute path. The empty path (and "." and "/") resolve to the root.
// Paths carrying NUL or control bytes fail with ErrInvalidPath; a
// result that would land outside the root fails with ErrAccessDenied.
func (r *Root) Resolve(rel string) (string, error) {
	for _, c := range rel {
		if c == 0 || c < 0x20 {
			return "", fmt.Errorf("resolve %q: %w", rel, ErrInvalidPath)
		}
	}

	rel = Clean(rel)
	if rel == "" {
		return r.path, nil
	}

	abs := filepath.Clean(filepath.Join(r.path, filepath.FromSlash(rel)))

	// Clean already clamped escapes; this check is the invariant the
	// rest of the package relies on, so verify it regardless.
	if abs != r.path && !strings.HasPrefix(abs, r.path+string(filepath.Separator)) {
		return "", fmt.Errorf("resolve %q: %w", rel, ErrAccessDenied)
	}
	return abs, nil
}

// Rel converts a resolved absolute path back to the slash-separated
// relative form ("" for the root itself).
func (r *Root) Rel(abs string) string {
	rel, err := filepath.Rel(r.path, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// ValidName reports whether name is usable as a single path segment:
// non-empty, no separators, no traversal, no NUL or control bytes.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	for _, c := range name {
		if c == 0 || c < 0x20 {
			return false
		}
	}
	return true
}
