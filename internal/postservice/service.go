// Package postservice coordinates post storage, the content store, the
// search engine, and the comments backend behind one service API.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/comments"
	"github.com/starford/ansuz/internal/content"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/textutil"
)

// PostDetail is the full representation of a post.
type PostDetail struct {
	models.Post
	Content  string `json:"content"`
	HTML     string `json:"html"`
	Checksum string `json:"checksum"`
}

// Service coordinates storage, content, search, and comments.
type Service struct {
	provider storage.Provider
	store    *content.Store
	engine   *search.Engine
	comments *comments.Service
}

// NewService creates a new post service.
func NewService(provider storage.Provider, store *content.Store, engine *search.Engine, cs *comments.Service) *Service {
	return &Service{provider: provider, store: store, engine: engine, comments: cs}
}

// ListPosts returns posts in display order, optionally filtered by tag.
func (s *Service) ListPosts(_ context.Context, tag string) []models.Post {
	posts := s.store.Posts()
	if tag == "" {
		return posts
	}
	filtered := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		for _, t := range p.Tags {
			if t == tag {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered
}

// Tags returns every distinct tag across all posts with its usage count,
// in display order of first appearance.
func (s *Service) Tags(_ context.Context) []TagCount {
	counts := map[string]int{}
	var order []string
	for _, p := range s.store.Posts() {
		for _, t := range p.Tags {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	out := make([]TagCount, len(order))
	for i, t := range order {
		out[i] = TagCount{Tag: t, Count: counts[t]}
	}
	return out
}

// TagCount pairs a tag with the number of posts carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GetPost returns the full post including its markdown body.
func (s *Service) GetPost(_ context.Context, slug string) (*PostDetail, error) {
	post, ok := s.store.Get(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	path, _ := s.store.Path(slug)
	raw, err := s.provider.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("post %q: %w", slug, err)
	}
	return &PostDetail{
		Post:     post,
		Content:  res.Body,
		HTML:     textutil.RenderHTML(res.Body),
		Checksum: checksum.Sum(raw),
	}, nil
}

// CreatePost writes a new post file and folds it into the store.
func (s *Service) CreatePost(_ context.Context, slug string, data []byte) (*PostDetail, error) {
	path := s.provider.PathForSlug(slug)
	if _, err := s.provider.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.provider.Write(path, data); err != nil {
		return nil, err
	}
	return s.reloadDetail(path, slug, data)
}

// UpdatePost writes updated content with optimistic concurrency: when
// ifMatch is non-empty it must equal the checksum of the stored bytes.
func (s *Service) UpdatePost(_ context.Context, slug string, data []byte, ifMatch string) (*PostDetail, error) {
	path, ok := s.store.Path(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	existing, err := s.provider.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.provider.Write(path, data); err != nil {
		return nil, err
	}
	return s.reloadDetail(path, slug, data)
}

// DeletePost removes the post file and its store entry.
func (s *Service) DeletePost(_ context.Context, slug string) error {
	path, ok := s.store.Path(slug)
	if !ok {
		return apperr.ErrNotFound
	}
	if err := s.provider.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.store.Remove(slug)
	return nil
}

// Search runs a fuzzy query over the post corpus.
func (s *Service) Search(ctx context.Context, query string, settings search.Settings) []search.Result {
	return s.engine.Search(ctx, query, settings)
}

// PostComments returns the GitHub-backed comment thread for a post,
// creating the backing issue lazily when a token permits it.
func (s *Service) PostComments(ctx context.Context, callerToken, slug, postURL string) ([]models.Comment, error) {
	post, ok := s.store.Get(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	issue, err := s.comments.FindOrCreateIssue(ctx, callerToken, post.Title, postURL)
	if err != nil {
		return nil, err
	}
	return s.comments.Comments(ctx, callerToken, issue)
}

// AddPostComment appends a comment to a post's thread. A caller token is
// required since anonymous writes are not possible.
func (s *Service) AddPostComment(ctx context.Context, callerToken, slug, postURL, body string) (*models.Comment, error) {
	post, ok := s.store.Get(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	issue, err := s.comments.FindOrCreateIssue(ctx, callerToken, post.Title, postURL)
	if err != nil {
		return nil, err
	}
	return s.comments.AddComment(ctx, callerToken, issue, body)
}

// CommentsConfigured reports whether a GitHub repository is wired up.
func (s *Service) CommentsConfigured() bool {
	return s.comments.IsConfigured()
}

func (s *Service) reloadDetail(path, slug string, data []byte) (*PostDetail, error) {
	if err := s.store.ReloadFile(path); err != nil {
		return nil, err
	}
	post, ok := s.store.Get(slug)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &PostDetail{
		Post:     post,
		Content:  res.Body,
		HTML:     textutil.RenderHTML(res.Body),
		Checksum: checksum.Sum(data),
	}, nil
}
