// Package testutil provides shared test helpers for setting up post
// directories and preference databases.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/prefs"
	"github.com/starford/ansuz/internal/storage"
)

// TestPostsDir creates a temporary posts directory with a storage.Provider.
func TestPostsDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	provider, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, provider
}

// WritePost writes a post file directly into dir, bypassing the provider.
func WritePost(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestPrefsDB creates a temporary preferences database that is
// automatically cleaned up.
func TestPrefsDB(t *testing.T) *prefs.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := prefs.Open(dbFile.Name(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
