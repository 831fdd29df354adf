package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return f, dir
}

func TestWriteReadDelete(t *testing.T) {
	f, _ := newTestFS(t)

	if err := f.Write("hello.md", []byte("# Hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := f.Read("hello.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "# Hi" {
		t.Errorf("read = %q", data)
	}
	if err := f.Delete("hello.md"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.Read("hello.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read after delete: %v, want ErrNotExist", err)
	}
}

func TestMove(t *testing.T) {
	f, _ := newTestFS(t)
	if err := f.Write("old-slug.md", []byte("body")); err != nil {
		t.Fatal(err)
	}
	if err := f.Move("old-slug.md", "new-slug.md"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := f.Read("old-slug.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old path still readable: %v", err)
	}
	data, err := f.Read("new-slug.md")
	if err != nil {
		t.Fatalf("read moved: %v", err)
	}
	if string(data) != "body" {
		t.Errorf("moved content = %q", data)
	}

	if err := f.Move("new-slug.md", "../outside.md"); err == nil {
		t.Error("move outside root must fail")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	f, dir := newTestFS(t)
	if err := f.Write("post.md", []byte("body")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "post.md" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestTraversalRejected(t *testing.T) {
	f, _ := newTestFS(t)
	for _, p := range []string{"../escape.md", "/etc/passwd", ""} {
		if _, err := f.Read(p); err == nil {
			t.Errorf("Read(%q) succeeded, want error", p)
		}
		if err := f.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) succeeded, want error", p)
		}
	}
}

func TestList(t *testing.T) {
	f, dir := newTestFS(t)
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	metas, err := f.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Fatalf("len = %d, want 2", len(metas))
	}
	for _, m := range metas {
		if m.Slug == "" || m.Checksum == "" {
			t.Errorf("incomplete metadata: %+v", m)
		}
	}
}

func TestSlugFor(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"hello-world.md", "hello-world"},
		{"Hello World.md", "hello-world"},
		{"My Post!.md", "my-post"},
		{"nested/dir/post.md", "post"},
	}
	for _, tc := range cases {
		if got := SlugFor(tc.path); got != tc.want {
			t.Errorf("SlugFor(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPathForSlug(t *testing.T) {
	f, _ := newTestFS(t)
	if got := f.PathForSlug("hello-world"); got != "hello-world.md" {
		t.Errorf("PathForSlug = %q", got)
	}
}

func TestNewFS_MissingRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing root")
	}
}
