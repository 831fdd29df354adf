package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/prefs"
	"github.com/starford/ansuz/internal/search"
)

// NewRouter creates a chi router with all API routes mounted. Read routes
// are public; mutating post routes sit behind the Bearer middleware when
// authEnabled is set. sseHandler, if non-nil, is mounted at GET /events.
// contentRoot resolves the cover image directory.
func NewRouter(svc *postservice.Service, engine *search.Engine, prefsDB *prefs.DB, defaults search.Settings, authEnabled bool, token string, sseHandler http.Handler, contentRoot, siteURL string) chi.Router {
	h := NewHandler(svc, engine, prefsDB, siteURL, defaults)
	ch := NewCoverHandler(contentRoot)
	auth := AuthMiddleware(authEnabled, token)

	r := chi.NewRouter()

	// Posts.
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{slug}", h.GetPost)
	r.With(auth).Post("/posts", h.CreatePost)
	r.With(auth).Put("/posts/{slug}", h.UpdatePost)
	r.With(auth).Delete("/posts/{slug}", h.DeletePost)

	// Tags.
	r.Get("/tags", h.Tags)

	// Search.
	r.Get("/search", h.Search)

	// Comments (visitor tokens travel in X-GitHub-Token).
	r.Get("/posts/{slug}/comments", h.PostComments)
	r.Post("/posts/{slug}/comments", h.AddPostComment)

	// Reading preferences.
	if prefsDB != nil {
		r.Get("/preferences/{client_id}", h.GetPreferences)
		r.Put("/preferences/{client_id}", h.PutPreferences)
		r.Delete("/preferences/{client_id}", h.DeletePreferences)
	}

	// Cover upload (auth-protected); serving happens outside /api.
	r.With(auth).Post("/covers", ch.Upload)

	// SSE endpoint.
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
