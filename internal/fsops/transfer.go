package fsops

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// OpenForRead opens a regular file for streaming download.
func OpenForRead(abs string) (io.ReadCloser, os.FileInfo, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("open %s: %w", abs, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("open %s: %w", abs, ErrIsADirectory)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", abs, err)
	}
	return f, info, nil
}

// WriteArchive streams a directory as a zip archive. Entry names are
// the paths of all descendant files relative to absDir; an empty tree
// yields a valid header-only archive. The walk aborts when ctx is
// cancelled (client disconnect).
func WriteArchive(ctx context.Context, w io.Writer, absDir string) error {
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive %s: %w", absDir, ErrNotFound)
		}
		return fmt.Errorf("archive %s: %w", absDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive %s: %w", absDir, ErrNotADirectory)
	}

	zw := zip.NewWriter(w)
	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries that vanish or deny access mid-walk are skipped.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p == absDir {
				return nil
			}
			// Childless directories get a trailing-slash entry so the
			// extracted tree matches the source tree exactly.
			children, err := os.ReadDir(p)
			if err != nil || len(children) > 0 {
				return nil
			}
			rel, err := filepath.Rel(absDir, p)
			if err != nil {
				return nil
			}
			h := &zip.FileHeader{
				Name:     filepath.ToSlash(rel) + "/",
				Modified: time.Now(),
			}
			if st, err := d.Info(); err == nil {
				h.Modified = st.ModTime()
			}
			_, err = zw.CreateHeader(h)
			return err
		}
		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return nil
		}

		h := &zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		if st, err := d.Info(); err == nil {
			h.Modified = st.ModTime()
		}
		fw, err := zw.CreateHeader(h)
		if err != nil {
			return err
		}

		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()
		_, err = io.Copy(fw, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive %s: %w", absDir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive %s: %w", absDir, err)
	}
	return nil
}

// WriteFile streams content into parentAbs/name, creating missing
// parents first. The name arrives outside the path-resolution flow, so
// it is validated as a single segment here even though the parent is
// already resolved. Writes go through a temp file and a rename, so
// a failed write never shows up as a complete file under the final
// name. An existing file is overwritten (last writer wins).
func WriteFile(parentAbs, name string, content io.Reader) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("write %q: %w", name, ErrInvalidName)
	}

	if err := os.MkdirAll(parentAbs, 0o755); err != nil {
		return 0, fmt.Errorf("create dir %s: %w", parentAbs, err)
	}

	tmp, err := os.CreateTemp(parentAbs, ".fily-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp in %s: %w", parentAbs, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, content)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close temp for %s: %w", name, err)
	}

	dst := filepath.Join(parentAbs, name)
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return n, nil
}
