package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goslug "github.com/gosimple/slug"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// FS stores posts as markdown files under a single root directory.
type FS struct {
	root string
}

// NewFS returns a provider rooted at dir, which must exist.
func NewFS(dir string) (*FS, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: bad root %q: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: %s is not a directory", root)
	}
	return &FS{root: root}, nil
}

// safePath joins rel onto the root and refuses anything that would land
// outside it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: missing path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: %q must be relative", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, rel))
	if err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}
	inside, err := filepath.Rel(f.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %q leaves the posts directory", rel)
	}
	return abs, nil
}

// SlugFor derives the URL-safe slug a file path maps to: the filename stem
// slugified. Exported so the watcher can map change events back to posts.
func SlugFor(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), ".md")
	if s := goslug.Make(stem); s != "" {
		return s
	}
	return strings.ToLower(strings.ReplaceAll(stem, " ", "-"))
}

// PathForSlug returns the relative file path for a slug.
func (f *FS) PathForSlug(slug string) string {
	return slug + ".md"
}

// List returns metadata for every .md file under the root, including
// nested directories.
func (f *FS) List() ([]models.PostMetadata, error) {
	var metas []models.PostMetadata
	walk := func(p string, d fs.DirEntry, walkErr error) error {
		switch {
		case walkErr != nil:
			return walkErr
		case d.IsDir(), !strings.HasSuffix(d.Name(), ".md"):
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		metas = append(metas, models.PostMetadata{
			Path:     rel,
			Slug:     SlugFor(rel),
			Checksum: checksum.Sum(raw),
		})
		return nil
	}
	if err := filepath.WalkDir(f.root, walk); err != nil {
		return nil, fmt.Errorf("storage: list posts: %w", err)
	}
	return metas, nil
}

// Read returns the raw bytes of a post file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return raw, nil
}

// Write replaces the file at path atomically. The content lands in a
// temp file that is fsynced and renamed over the target, so readers
// never observe a partial post.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}

	err = func() error {
		if _, err := tmp.Write(content); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		return tmp.Close()
	}()
	if err == nil {
		err = os.Rename(tmp.Name(), abs)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// Delete removes a post file.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a post file, typically when a slug changes.
func (f *FS) Move(oldPath, newPath string) error {
	src, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	dst, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: move %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}
