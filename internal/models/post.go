// Package models defines the domain types for Ansuz.
package models

// Author describes the writer of a post.
type Author struct {
	Name   string `json:"name" yaml:"name"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar"`
	Bio    string `json:"bio,omitempty" yaml:"bio"`
}

// Post represents one article held by the content store.
//
// ID is a surrogate identifier assigned monotonically at load time; Slug is
// the URL-safe identifier derived from the source filename and is unique
// across the store. Content is the search-normalized body text and is empty
// until lazily loaded.
type Post struct {
	ID       int      `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords,omitempty"`
	Excerpt  string   `json:"excerpt"`
	Cover    string   `json:"cover,omitempty"`
	Author   Author   `json:"author"`
	Content  string   `json:"-"`
}

// PostMetadata is a lightweight view returned by storage list operations.
type PostMetadata struct {
	Path     string
	Slug     string
	Checksum string
}

// Comment is one entry fetched from the comment backend.
type Comment struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Avatar    string `json:"avatar,omitempty"`
	Content   string `json:"content"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
