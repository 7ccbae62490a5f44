package fsops

import (
	"fmt"
	"os"
	"time"
)

// Entry is one child of a listed directory. Size is present only for
// regular files; directories report no size.
type Entry struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"` // "file" or "directory"
	Size     *int64    `json:"size,omitempty"`
	Modified time.Time `json:"modified"`
}

// IsDir reports whether abs exists and is a directory.
func IsDir(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

// List enumerates the children of a resolved directory. Kind and size
// come from a stat of each child, not from name heuristics. Ordering is
// whatever the OS returns; sorting is the caller's concern.
func List(abs string) ([]Entry, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("list %s: %w", abs, ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: %w", abs, ErrNotADirectory)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", abs, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		st, err := d.Info()
		if err != nil {
			// Entry vanished between readdir and stat; skip it.
			continue
		}
		e := Entry{
			Name:     d.Name(),
			Type:     "file",
			Modified: st.ModTime().UTC(),
		}
		if st.IsDir() {
			e.Type = "directory"
		} else {
			size := st.Size()
			e.Size = &size
		}
		entries = append(entries, e)
	}
	return entries, nil
}
