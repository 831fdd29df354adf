package search

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/ansuz/internal/content"
)

// Engine owns the current index and rebuilds it lazily when the content
// store's version moves or the content-inclusion flag flips. Rebuilds are
// wholesale, never incremental: the post set is small, and the simplicity is
// worth more than the saved work.
//
// The swap is latest-wins: queries already running against the old index
// finish against a consistent snapshot.
type Engine struct {
	store  *content.Store
	logger *slog.Logger

	buildMu sync.Mutex
	current atomic.Pointer[Index]
}

// NewEngine creates an engine over the store.
func NewEngine(store *content.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Index returns a fresh-enough index for the given settings, rebuilding it
// first when stale.
func (e *Engine) Index(settings Settings) *Index {
	version := e.store.Version()
	if ix := e.current.Load(); ix != nil && !ix.Stale(version, settings) {
		return ix
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	// Re-check under the build lock; another caller may have rebuilt.
	version = e.store.Version()
	if ix := e.current.Load(); ix != nil && !ix.Stale(version, settings) {
		return ix
	}

	posts := e.store.Posts()
	ix := Build(posts, settings, version)
	e.current.Store(ix)
	e.logger.Debug("search: index rebuilt",
		slog.Int("posts", len(posts)),
		slog.Bool("include_content", settings.IncludeContent),
		slog.Int64("version", version))
	return ix
}

// Search runs one query end to end: preload content when the settings call
// for it, fetch a current index, execute, and format. It never returns an
// error; degraded paths are logged and produce empty or partial results.
func (e *Engine) Search(ctx context.Context, query string, settings Settings) []Result {
	if settings.IncludeContent && !e.store.ContentLoaded() {
		if !e.store.PreloadAll(ctx) {
			e.logger.Warn("search: content preload incomplete, searching metadata only")
		}
	}
	ix := e.Index(settings)
	matches := ix.Search(query, settings)
	return FormatMatches(matches, settings)
}
