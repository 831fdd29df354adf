// Package content holds post metadata and lazily-loaded post bodies.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/textutil"
)

const (
	excerptLength = 120
	keywordLimit  = 10
)

// Store owns the post set. Metadata is built eagerly from the post files;
// normalized body text is loaded lazily per slug or in bulk via PreloadAll.
//
// Every mutation (add, update, delete, content load) bumps a version counter.
// Consumers that derive state from the post set (the search index) compare
// versions instead of observing the store, so invalidation is explicit.
type Store struct {
	provider storage.Provider
	logger   *slog.Logger

	mu            sync.RWMutex
	posts         []*models.Post // display order: date desc, slug asc
	bySlug        map[string]*models.Post
	paths         map[string]string // slug -> relative file path
	nextID        int
	version       int64
	contentLoaded bool
}

// NewStore creates an empty store over the given provider.
func NewStore(provider storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		provider: provider,
		logger:   logger,
		bySlug:   make(map[string]*models.Post),
		paths:    make(map[string]string),
		nextID:   1,
	}
}

// LoadAll builds metadata for every post file. Files that cannot be read are
// logged and skipped; they do not fail the load.
func (s *Store) LoadAll() error {
	metas, err := s.provider.List()
	if err != nil {
		return fmt.Errorf("content: list posts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range metas {
		data, err := s.provider.Read(m.Path)
		if err != nil {
			s.logger.Warn("content: read failed, skipping",
				slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		s.upsertLocked(m.Path, m.Slug, data)
	}
	s.sortLocked()
	s.version++
	return nil
}

// ReloadFile re-parses one file into the store, inserting or replacing the
// post for its slug. IDs are stable across reloads.
func (s *Store) ReloadFile(path string) error {
	data, err := s.provider.Read(path)
	if err != nil {
		return fmt.Errorf("content: reload %s: %w", path, err)
	}
	slug := storage.SlugFor(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(path, slug, data)
	s.sortLocked()
	s.version++
	return nil
}

// Remove drops the post with the given slug, if present.
func (s *Store) Remove(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlug[slug]; !ok {
		return
	}
	delete(s.bySlug, slug)
	delete(s.paths, slug)
	out := s.posts[:0]
	for _, p := range s.posts {
		if p.Slug != slug {
			out = append(out, p)
		}
	}
	s.posts = out
	s.version++
}

// Posts returns the post set in display order. The returned slice and its
// elements are copies; mutating them does not affect the store.
func (s *Store) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = *p
	}
	return out
}

// Get returns a copy of the post with the given slug.
func (s *Store) Get(slug string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.bySlug[slug]
	if !ok {
		return models.Post{}, false
	}
	return *p, true
}

// Path returns the backing file path for a slug.
func (s *Store) Path(slug string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[slug]
	return p, ok
}

// Content returns the normalized body text for slug, loading and caching it
// on first access. Load failures are logged and reported as absent content,
// never as an error.
func (s *Store) Content(ctx context.Context, slug string) (string, bool) {
	s.mu.RLock()
	p, ok := s.bySlug[slug]
	if !ok {
		s.mu.RUnlock()
		return "", false
	}
	if p.Content != "" {
		body := p.Content
		s.mu.RUnlock()
		return body, true
	}
	path := s.paths[slug]
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return "", false
	}
	body, err := s.loadContent(path)
	if err != nil {
		s.logger.Warn("content: load failed",
			slog.String("slug", slug), slog.String("error", err.Error()))
		return "", false
	}

	s.mu.Lock()
	// Duplicate concurrent loads overwrite with identical data; last write
	// wins and the version bump makes dependents rebuild.
	if p, ok := s.bySlug[slug]; ok {
		p.Content = body
		s.version++
	}
	s.mu.Unlock()
	return body, true
}

// PreloadAll loads normalized content for every post concurrently. A per-post
// failure is logged and leaves that post's content absent; it does not fail
// the batch. Repeated calls after a completed batch are no-ops. The return
// value is false only when the batch itself was interrupted (context
// cancellation), in which case the loaded flag stays unset so a later call
// retries.
func (s *Store) PreloadAll(ctx context.Context) bool {
	s.mu.RLock()
	if s.contentLoaded {
		s.mu.RUnlock()
		return true
	}
	type job struct{ slug, path string }
	jobs := make([]job, 0, len(s.posts))
	for _, p := range s.posts {
		if p.Content == "" {
			jobs = append(jobs, job{p.Slug, s.paths[p.Slug]})
		}
	}
	s.mu.RUnlock()

	g, gCtx := errgroup.WithContext(ctx)
	bodies := make([]string, len(jobs))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			body, err := s.loadContent(j.path)
			if err != nil {
				s.logger.Warn("content: preload failed",
					slog.String("slug", j.slug), slog.String("error", err.Error()))
				return nil
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("content: preload interrupted", slog.String("error", err.Error()))
		return false
	}

	s.mu.Lock()
	for i, j := range jobs {
		if bodies[i] == "" {
			continue
		}
		if p, ok := s.bySlug[j.slug]; ok {
			p.Content = bodies[i]
		}
	}
	s.contentLoaded = true
	s.version++
	s.mu.Unlock()
	return true
}

// ContentLoaded reports whether a bulk preload has completed.
func (s *Store) ContentLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentLoaded
}

// Version returns the mutation counter. It increases on every change to the
// post set or to cached content.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) loadContent(path string) (string, error) {
	data, err := s.provider.Read(path)
	if err != nil {
		return "", err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	return textutil.SearchableText(res.Body), nil
}

// upsertLocked parses data and inserts or replaces the post for slug.
// Callers hold s.mu and re-sort afterwards.
func (s *Store) upsertLocked(path, slug string, data []byte) {
	res, err := parser.Parse(data)
	if err != nil {
		s.logger.Warn("content: parse failed, skipping",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	post := buildPost(slug, res)
	if existing, ok := s.bySlug[slug]; ok {
		post.ID = existing.ID
		*existing = *post
	} else {
		post.ID = s.nextID
		s.nextID++
		s.bySlug[slug] = post
		s.posts = append(s.posts, post)
	}
	s.paths[slug] = path
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.posts, func(i, j int) bool {
		if s.posts[i].Date != s.posts[j].Date {
			return s.posts[i].Date > s.posts[j].Date
		}
		return s.posts[i].Slug < s.posts[j].Slug
	})
}

// buildPost assembles a Post from parsed frontmatter and body, applying the
// generated defaults for missing keys. Keywords and the generated excerpt are
// derived from the normalized body; the body itself is not retained here, it
// stays subject to lazy loading.
func buildPost(slug string, res *parser.Result) *models.Post {
	fm := res.Frontmatter
	if fm == nil {
		fm = &parser.Frontmatter{}
	}

	plain := textutil.SearchableText(res.Body)

	title := fm.Title
	if title == "" {
		title = slug
	}
	date := fm.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	excerpt := fm.Description
	if excerpt == "" {
		excerpt = textutil.Excerpt(res.Body, excerptLength)
	}
	cover := fm.Cover
	if cover == "" {
		cover = "https://picsum.photos/seed/" + url.QueryEscape(slug) + "/1200/600"
	}
	author := fm.Author
	if author.Name == "" {
		author = models.Author{
			Name:   "Anonymous",
			Avatar: "https://picsum.photos/seed/" + url.QueryEscape(slug) + "/200/200",
		}
	}

	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}

	return &models.Post{
		Slug:     slug,
		Title:    title,
		Date:     date,
		Tags:     tags,
		Keywords: textutil.ExtractKeywords(plain, keywordLimit),
		Excerpt:  excerpt,
		Cover:    cover,
		Author:   author,
	}
}
