package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// State is the controller's search lifecycle flag.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Location is the shareable location identifier the query text stays in sync
// with (a URL query parameter in practice). Read seeds the query text at
// construction; Write publishes every subsequent query change.
type Location interface {
	Read() string
	Write(query string)
}

// Controller owns query text, result list, and lifecycle state for one
// search session. It is the only writer of its fields; concurrent SetQuery
// calls are serialized per transition and a generation counter prevents a
// slow stale search from overwriting the results of a newer one.
type Controller struct {
	engine *Engine
	logger *slog.Logger
	loc    Location

	mu          sync.Mutex
	settings    Settings
	query       string
	results     []Result
	state       State
	generation  uint64
	lastWritten string
}

// NewController creates a session controller. If loc is non-nil its current
// value seeds the query text; call Run (or SetQuery) to execute it.
func NewController(engine *Engine, settings Settings, loc Location, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		engine:   engine,
		logger:   logger,
		loc:      loc,
		settings: settings,
	}
	if loc != nil {
		c.query = loc.Read()
	}
	return c
}

// Query returns the current query text.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Results returns the current result list.
func (c *Controller) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settings returns the session's query settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings replaces the settings for subsequent queries. A running query
// keeps the settings it started with.
func (c *Controller) SetSettings(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

// Run executes the current query text (typically the location-seeded one).
func (c *Controller) Run(ctx context.Context) {
	c.SetQuery(ctx, c.Query())
}

// SetQuery applies a session-originated query change: it synchronizes the
// location identifier and executes the search. Empty or sub-minimum queries
// clear results synchronously and return to idle. Failures settle to
// complete with empty results and a logged diagnostic; SetQuery never
// propagates an error.
func (c *Controller) SetQuery(ctx context.Context, query string) {
	c.writeLocation(query)
	c.apply(ctx, query)
}

// OnLocationChange applies an environment-originated change to the location
// identifier. A value this controller just wrote is ignored, breaking the
// feedback loop between the two sync directions.
func (c *Controller) OnLocationChange(ctx context.Context, query string) {
	c.mu.Lock()
	echoed := query == c.lastWritten
	c.mu.Unlock()
	if echoed {
		return
	}
	c.apply(ctx, query)
}

// Clear resets the session to idle with no query and no results.
func (c *Controller) Clear() {
	c.writeLocation("")
	c.mu.Lock()
	c.query = ""
	c.results = nil
	c.state = StateIdle
	c.generation++
	c.mu.Unlock()
}

func (c *Controller) writeLocation(query string) {
	if c.loc == nil {
		return
	}
	c.mu.Lock()
	c.lastWritten = query
	c.mu.Unlock()
	c.loc.Write(query)
}

func (c *Controller) apply(ctx context.Context, query string) {
	trimmed := strings.TrimSpace(query)

	c.mu.Lock()
	c.query = query
	c.generation++
	gen := c.generation
	settings := c.settings

	if trimmed == "" || len([]rune(trimmed)) < settings.MinLength {
		c.results = nil
		c.state = StateIdle
		c.mu.Unlock()
		return
	}
	c.state = StateSearching
	c.mu.Unlock()

	results := c.engine.Search(ctx, trimmed, settings)
	if err := ctx.Err(); err != nil {
		c.logger.Warn("search: query interrupted",
			slog.String("query", trimmed), slog.String("error", err.Error()))
		results = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// A newer query superseded this one while it ran; drop the stale
		// results instead of overwriting.
		return
	}
	c.results = results
	c.state = StateComplete
}
