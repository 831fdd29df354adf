// Package storage defines the posts-directory file abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for post file operations.
type Provider interface {
	// List returns metadata for every .md file under the posts root.
	List() ([]models.PostMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to the root).
	Move(oldPath, newPath string) error
	// PathForSlug returns the relative file path a post with the given slug
	// is stored at.
	PathForSlug(slug string) string
}
