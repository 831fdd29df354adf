package api

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/search"
)

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Slug    string `json:"slug" example:"hello-world" validate:"required"`
	Content string `json:"content" example:"---\ntitle: Hello\n---\nWorld" validate:"required"`
}

// UpdatePostRequest is the request body for updating a post.
type UpdatePostRequest struct {
	Content string `json:"content" example:"---\ntitle: Hello\n---\nUpdated" validate:"required"`
}

// AddCommentRequest is the request body for posting a comment.
type AddCommentRequest struct {
	Body string `json:"body" example:"Great article!" validate:"required"`
}

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = postservice.PostDetail

// PostListResponse wraps post listings.
type PostListResponse struct {
	Posts []models.Post `json:"posts" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// TagsResponse wraps the tag listing.
type TagsResponse struct {
	Tags []postservice.TagCount `json:"tags" validate:"required"`
}

// SearchResponse wraps a search execution: the applied query text, the
// lifecycle state it settled in, the canonical location query string, and
// the formatted results.
type SearchResponse struct {
	Query    string          `json:"query" example:"vue router"`
	State    string          `json:"state" example:"complete" validate:"required"`
	Location string          `json:"location" example:"q=vue+router"`
	Results  []search.Result `json:"results" validate:"required"`
}

// CommentsResponse wraps a post's comment thread.
type CommentsResponse struct {
	Comments []models.Comment `json:"comments" validate:"required"`
	Writable bool             `json:"writable" example:"true"`
}

// CoverUploadResponse is returned after a successful cover image upload.
type CoverUploadResponse struct {
	Filename string `json:"filename" example:"sunrise.jpg" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/covers/sunrise.jpg" validate:"required"`
}
