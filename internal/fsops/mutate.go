package fsops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MakeDirectory creates a directory and any missing parents. Creating a
// directory that already exists is a success (idempotent).
func MakeDirectory(abs string) error {
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return nil
}

// Rename gives the entry at oldAbs a new single-segment name within its
// parent directory. The derived target is re-checked against the root
// before the rename is issued, and an occupied target is a collision,
// not an overwrite.
func (r *Root) Rename(oldAbs, newName string) error {
	if !ValidName(newName) {
		return fmt.Errorf("rename to %q: %w", newName, ErrInvalidName)
	}

	newAbs := filepath.Join(filepath.Dir(oldAbs), newName)
	if newAbs != r.path && !strings.HasPrefix(newAbs, r.path+string(filepath.Separator)) {
		return fmt.Errorf("rename to %q: %w", newName, ErrAccessDenied)
	}

	if _, err := os.Lstat(oldAbs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("rename %s: %w", oldAbs, ErrNotFound)
		}
		return fmt.Errorf("rename %s: %w", oldAbs, err)
	}
	if _, err := os.Lstat(newAbs); err == nil {
		return fmt.Errorf("rename to %q: %w", newName, ErrExists)
	}

	if err := os.Rename(oldAbs, newAbs); err != nil {
		return fmt.Errorf("rename %s: %w", oldAbs, err)
	}
	return nil
}

// Move relocates srcAbs to dstAbs. Both paths are already resolved;
// missing parents of the destination are created. Like Rename, an
// occupied destination is a collision.
func Move(srcAbs, dstAbs string) error {
	if _, err := os.Lstat(srcAbs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("move %s: %w", srcAbs, ErrNotFound)
		}
		return fmt.Errorf("move %s: %w", srcAbs, err)
	}
	if _, err := os.Lstat(dstAbs); err == nil {
		return fmt.Errorf("move to %s: %w", dstAbs, ErrExists)
	}

	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", dstAbs, err)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return fmt.Errorf("move %s: %w", srcAbs, err)
	}
	return nil
}

// Delete removes a file, or a directory with all its descendants.
// Deleting the root itself is refused. A missing path reports
// ErrNotFound rather than succeeding silently.
func (r *Root) Delete(abs string) error {
	if abs == r.path {
		return fmt.Errorf("delete root: %w", ErrAccessDenied)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", abs, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", abs, err)
	}

	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", abs, err)
	}
	return nil
}
