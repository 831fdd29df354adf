// Package internal wires configuration, storage, search, and the HTTP or
// MCP surface into a running application.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/authrelay"
	"github.com/starford/ansuz/internal/comments"
	"github.com/starford/ansuz/internal/content"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/prefs"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

const shutdownGrace = 10 * time.Second

// Run assembles the application from the given options and blocks until
// shutdown. In MCP mode it serves tools over stdio instead of HTTP.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Content.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("comments_configured", cfg.GitHub.CommentsConfigured()),
		slog.Bool("oauth_configured", cfg.GitHub.OAuthConfigured()))

	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return fmt.Errorf("create posts dir: %w", err)
	}

	provider, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	store := content.NewStore(provider, logger)
	if err := store.LoadAll(); err != nil {
		return fmt.Errorf("load posts: %w", err)
	}

	prefsDB, err := prefs.Open(cfg.SQLite.Path, logger)
	if err != nil {
		return fmt.Errorf("init preferences db: %w", err)
	}
	defer prefsDB.Close()

	engine := search.NewEngine(store, logger)
	searchDefaults := search.Settings{
		IncludeContent:   cfg.Search.IncludeContent,
		Threshold:        cfg.Search.Threshold,
		MinLength:        cfg.Search.MinLength,
		HighlightMatches: cfg.Search.HighlightMatches,
	}
	commentSvc := comments.NewService(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, logger)

	svc := postservice.NewService(provider, store, engine, commentSvc)

	// MCP stdio mode replaces the HTTP surface entirely.
	if app.mcpMode {
		logger.Info("serving MCP tools on stdio")
		return mcpserver.New(svc, engine).ServeStdio()
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Liveness and readiness share one handler; the process either has its
	// store loaded or never got this far.
	health := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	r.Mount("/api", api.NewRouter(svc, engine, prefsDB, searchDefaults,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Content.Path, cfg.App.SiteURL))

	covers := api.NewCoverHandler(cfg.Content.Path)
	r.Get("/covers/{filename}", covers.ServeFile)

	if cfg.GitHub.OAuthConfigured() {
		relay := authrelay.New(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.FrontendURL, logger)
		r.Mount("/auth", relay.Routes())
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(signalCtx)

	// Warm the search index in the background so the first content-wide
	// query does not pay the full preload cost.
	g.Go(func() error {
		store.PreloadAll(gCtx)
		return nil
	})

	// Feed file-system changes into the SSE broker.
	g.Go(func() error {
		err := content.Watch(gCtx, store, cfg.Content.Path, logger, func(kind, slug string) {
			broker.PublishPostEvent(kind, slug)
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("listening", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Drain the server once a signal arrives or another goroutine fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(drainCtx); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("run", slog.String("error", err.Error()))
		return err
	}

	logger.Info("stopped")
	return nil
}
