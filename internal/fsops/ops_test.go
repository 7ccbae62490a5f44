package fsops

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustResolve(t *testing.T, root *Root, rel string) string {
	t.Helper()
	abs, err := root.Resolve(rel)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", rel, err)
	}
	return abs
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestListEmptyDirectory(t *testing.T) {
	root := newRoot(t)
	dir := mustResolve(t, root, "empty")
	if err := MakeDirectory(dir); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("listing fresh directory returned %d entries, want 0", len(entries))
	}
}

func TestListErrors(t *testing.T) {
	root := newRoot(t)

	if _, err := List(mustResolve(t, root, "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(missing) = %v, want ErrNotFound", err)
	}

	file := mustResolve(t, root, "plain.txt")
	if _, err := WriteFile(root.Path(), "plain.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := List(file); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("List(file) = %v, want ErrNotADirectory", err)
	}
}

func TestUploadListDownloadRoundTrip(t *testing.T) {
	root := newRoot(t)
	content := []byte("quarterly numbers\nand some more bytes")

	parent := mustResolve(t, root, "projects/2024")
	n, err := WriteFile(parent, "report.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("WriteFile wrote %d bytes, want %d", n, len(content))
	}

	entries, err := List(parent)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List returned %v, want exactly report.pdf", entryNames(entries))
	}
	e := entries[0]
	if e.Name != "report.pdf" || e.Type != "file" {
		t.Errorf("entry = %+v, want file report.pdf", e)
	}
	if e.Size == nil || *e.Size != int64(len(content)) {
		t.Errorf("entry size = %v, want %d", e.Size, len(content))
	}

	rc, info, err := OpenForRead(filepath.Join(parent, "report.pdf"))
	if err != nil {
		t.Fatalf("OpenForRead: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded content differs from upload")
	}
	if info.Size() != int64(len(content)) {
		t.Errorf("stat size = %d, want %d", info.Size(), len(content))
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	root := newRoot(t)

	for _, body := range []string{"first version", "second"} {
		if _, err := WriteFile(root.Path(), "note.txt", strings.NewReader(body)); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	got, err := os.ReadFile(filepath.Join(root.Path(), "note.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want last write to win", got)
	}
}

func TestWriteFileRejectsBadNames(t *testing.T) {
	root := newRoot(t)
	for _, name := range []string{"", "..", "a/b", "a\\b", "x\x00y"} {
		if _, err := WriteFile(root.Path(), name, strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("WriteFile(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestWriteFileLeavesNoTempOnFailure(t *testing.T) {
	root := newRoot(t)

	// A reader that fails mid-copy must not leave the target name behind.
	failing := io.MultiReader(strings.NewReader("partial"), &errReader{})
	if _, err := WriteFile(root.Path(), "broken.bin", failing); err == nil {
		t.Fatal("WriteFile with failing reader succeeded")
	}
	if _, err := os.Stat(filepath.Join(root.Path(), "broken.bin")); !os.IsNotExist(err) {
		t.Error("failed write left a file under the final name")
	}
}

type errReader struct{}

func (*errReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestMakeDirectoryNested(t *testing.T) {
	root := newRoot(t)

	if err := MakeDirectory(mustResolve(t, root, "a/b/c")); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}
	// Idempotent on repeat.
	if err := MakeDirectory(mustResolve(t, root, "a/b/c")); err != nil {
		t.Fatalf("MakeDirectory twice: %v", err)
	}

	for parent, child := range map[string]string{"a": "b", "a/b": "c"} {
		entries, err := List(mustResolve(t, root, parent))
		if err != nil {
			t.Fatalf("List(%s): %v", parent, err)
		}
		if len(entries) != 1 || entries[0].Name != child || entries[0].Type != "directory" {
			t.Errorf("List(%s) = %v, want single directory %q", parent, entryNames(entries), child)
		}
		if entries[0].Size != nil {
			t.Errorf("directory %s reports a size", child)
		}
	}
}

func TestRenamePreservesContent(t *testing.T) {
	root := newRoot(t)
	content := "do not lose me"

	if _, err := WriteFile(root.Path(), "a.txt", strings.NewReader(content)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := root.Rename(mustResolve(t, root, "a.txt"), "b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root.Path(), "b.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("renamed content = %q, want %q", got, content)
	}

	entries, _ := List(root.Path())
	for _, e := range entries {
		if e.Name == "a.txt" {
			t.Error("old name still listed after rename")
		}
	}
}

func TestRenameFailures(t *testing.T) {
	root := newRoot(t)
	if _, err := WriteFile(root.Path(), "x.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := WriteFile(root.Path(), "y.txt", strings.NewReader("y")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := root.Rename(mustResolve(t, root, "missing"), "z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rename missing = %v, want ErrNotFound", err)
	}
	if err := root.Rename(mustResolve(t, root, "x.txt"), "y.txt"); !errors.Is(err, ErrExists) {
		t.Errorf("rename onto occupied name = %v, want ErrExists", err)
	}
	if err := root.Rename(mustResolve(t, root, "x.txt"), "a/b"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("rename to multi-segment = %v, want ErrInvalidName", err)
	}
}

func TestMove(t *testing.T) {
	root := newRoot(t)

	if _, err := WriteFile(mustResolve(t, root, "a"), "x.txt", strings.NewReader("payload")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := MakeDirectory(mustResolve(t, root, "b")); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}

	src := mustResolve(t, root, "a/x.txt")
	dst := mustResolve(t, root, "b/x.txt")
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}

	aEntries, _ := List(mustResolve(t, root, "a"))
	if len(aEntries) != 0 {
		t.Errorf("source dir still holds %v after move", entryNames(aEntries))
	}
	bEntries, _ := List(mustResolve(t, root, "b"))
	if len(bEntries) != 1 || bEntries[0].Name != "x.txt" {
		t.Errorf("target dir holds %v, want x.txt", entryNames(bEntries))
	}

	if err := Move(src, dst); !errors.Is(err, ErrNotFound) {
		t.Errorf("move of vanished source = %v, want ErrNotFound", err)
	}
	if _, err := WriteFile(mustResolve(t, root, "a"), "x.txt", strings.NewReader("again")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := Move(src, dst); !errors.Is(err, ErrExists) {
		t.Errorf("move onto occupied target = %v, want ErrExists", err)
	}
}

func TestDeleteIsTotal(t *testing.T) {
	root := newRoot(t)

	files := []string{"d/one.txt", "d/sub/two.txt", "d/sub/deep/three.txt"}
	for _, f := range files {
		dir, name := filepath.Split(f)
		if _, err := WriteFile(mustResolve(t, root, dir), name, strings.NewReader(f)); err != nil {
			t.Fatalf("WriteFile(%s): %v", f, err)
		}
	}

	if err := root.Delete(mustResolve(t, root, "d")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, f := range files {
		if _, err := os.Stat(filepath.Join(root.Path(), filepath.FromSlash(f))); !os.IsNotExist(err) {
			t.Errorf("%s still exists after recursive delete", f)
		}
	}

	if err := root.Delete(mustResolve(t, root, "d")); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete of missing path = %v, want ErrNotFound", err)
	}
}

func TestDeleteRootRefused(t *testing.T) {
	root := newRoot(t)
	for _, rel := range []string{"", ".", "../.."} {
		abs := mustResolve(t, root, rel)
		if err := root.Delete(abs); !errors.Is(err, ErrAccessDenied) {
			t.Errorf("Delete(%q→%q) = %v, want ErrAccessDenied", rel, abs, err)
		}
	}
}

func TestWriteArchive(t *testing.T) {
	root := newRoot(t)

	want := map[string]string{
		"readme.md":       "hello",
		"sub/data.csv":    "1,2,3",
		"sub/deep/x.conf": "key=value",
	}
	for f, body := range want {
		dir, name := filepath.Split(f)
		if _, err := WriteFile(mustResolve(t, root, "proj/"+dir), name, strings.NewReader(body)); err != nil {
			t.Fatalf("WriteFile(%s): %v", f, err)
		}
	}

	var buf bytes.Buffer
	if err := WriteArchive(context.Background(), &buf, mustResolve(t, root, "proj")); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != len(want) {
		t.Fatalf("archive holds %d entries, want %d", len(zr.File), len(want))
	}
	for _, zf := range zr.File {
		body, ok := want[zf.Name]
		if !ok {
			t.Errorf("unexpected archive entry %q", zf.Name)
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open %s: %v", zf.Name, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != body {
			t.Errorf("entry %s = %q, want %q", zf.Name, got, body)
		}
	}
}

func TestWriteArchiveKeepsEmptySubdirectories(t *testing.T) {
	root := newRoot(t)

	if _, err := WriteFile(mustResolve(t, root, "proj"), "readme.md", strings.NewReader("hi")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := MakeDirectory(mustResolve(t, root, "proj/hollow")); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteArchive(context.Background(), &buf, mustResolve(t, root, "proj")); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	names := make(map[string]bool, len(zr.File))
	for _, zf := range zr.File {
		names[zf.Name] = true
	}
	if !names["hollow/"] {
		t.Errorf("empty subdirectory missing from archive, entries: %v", names)
	}
	if !names["readme.md"] {
		t.Errorf("file entry missing from archive, entries: %v", names)
	}
}

func TestWriteArchiveEmptyDirectory(t *testing.T) {
	root := newRoot(t)
	dir := mustResolve(t, root, "empty")
	if err := MakeDirectory(dir); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteArchive(context.Background(), &buf, dir); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("empty archive is not a valid zip: %v", err)
	}
	if len(zr.File) != 0 {
		t.Errorf("empty directory archived %d entries", len(zr.File))
	}
}

func TestOpenForReadDirectory(t *testing.T) {
	root := newRoot(t)
	if _, _, err := OpenForRead(root.Path()); !errors.Is(err, ErrIsADirectory) {
		t.Errorf("OpenForRead(dir) = %v, want ErrIsADirectory", err)
	}
	if _, _, err := OpenForRead(mustResolve(t, root, "nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("OpenForRead(missing) = %v, want ErrNotFound", err)
	}
}
