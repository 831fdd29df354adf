package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/prefs"
	"github.com/starford/ansuz/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *postservice.Service
	engine   *search.Engine
	prefsDB  *prefs.DB
	siteURL  string
	defaults search.Settings
}

// NewHandler creates a new Handler. siteURL is the public origin used when
// composing post permalinks for the comment backend; defaults are the
// search settings requests start from before per-request overrides.
func NewHandler(svc *postservice.Service, engine *search.Engine, prefsDB *prefs.DB, siteURL string, defaults search.Settings) *Handler {
	return &Handler{
		svc:      svc,
		engine:   engine,
		prefsDB:  prefsDB,
		siteURL:  strings.TrimRight(siteURL, "/"),
		defaults: defaults,
	}
}

func (h *Handler) postURL(r *http.Request, slug string) string {
	if h.siteURL != "" {
		return h.siteURL + "/posts/" + slug
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/posts/" + slug
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List posts in display order with optional tag filter
//	@Tags			posts
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size (0 for all)"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200	{object}	PostListResponse
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts := h.svc.ListPosts(r.Context(), q.Get("tag"))
	total := len(posts)

	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset > 0 {
		if offset > len(posts) {
			offset = len(posts)
		}
		posts = posts[offset:]
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
	})
}

// GetPost handles GET /api/posts/{slug}.
//
//	@Summary		Get a single post by slug
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	PostDetail
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.svc.GetPost(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get post failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", `"`+post.Checksum+`"`)
	writeJSON(w, http.StatusOK, post)
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a new post
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePostRequest	true	"Post to create"
//	@Success		201		{object}	PostDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Slug == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug and content are required"))
		return
	}
	post, err := h.svc.CreatePost(r.Context(), req.Slug, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("post already exists"))
		} else {
			slog.Error("create post failed", slog.String("slug", req.Slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/{slug}.
//
//	@Summary		Update a post with optimistic concurrency
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			slug		path	string				true	"Post slug"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdatePostRequest	true	"Updated content"
//	@Success		200		{object}	PostDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	slug := chi.URLParam(r, "slug")
	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	post, err := h.svc.UpdatePost(r.Context(), slug, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update post failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/{slug}.
//
//	@Summary		Delete a post
//	@Tags			posts
//	@Param			slug	path	string	true	"Post slug"
//	@Success		204		"Post deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.svc.DeletePost(r.Context(), slug); err != nil {
		slog.Error("delete post failed", slog.String("slug", slug), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tags handles GET /api/tags.
//
//	@Summary		List distinct tags with usage counts
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags := h.svc.Tags(r.Context())
	if tags == nil {
		tags = []postservice.TagCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// Search handles GET /api/search.
//
//	@Summary		Fuzzy search across posts
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string	true	"Search query"
//	@Param			include_content	query		bool	false	"Match against post bodies (default true)"
//	@Param			threshold		query		number	false	"Fuzzy tolerance in [0,1] (default 0.4)"
//	@Param			highlight		query		bool	false	"Render highlight markup (default true)"
//	@Success		200	{object}	SearchResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	settings := h.defaults
	q := r.URL.Query()
	if v := q.Get("include_content"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.IncludeContent = b
		}
	}
	if v := q.Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			settings.Threshold = f
		}
	}
	if v := q.Get("highlight"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.HighlightMatches = b
		}
	}

	// Each request is one search session: the q parameter seeds the query
	// text and the controller's location writes produce the canonical
	// query string echoed back to the client.
	loc := newQueryLocation(q)
	ctrl := search.NewController(h.engine, settings, loc, slog.Default())
	ctrl.Run(r.Context())

	results := ctrl.Results()
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:    ctrl.Query(),
		State:    ctrl.State().String(),
		Location: loc.Encode(),
		Results:  results,
	})
}

// PostComments handles GET /api/posts/{slug}/comments.
//
//	@Summary		Get the GitHub-backed comment thread for a post
//	@Tags			comments
//	@Produce		json
//	@Param			slug			path	string	true	"Post slug"
//	@Param			X-GitHub-Token	header	string	false	"Visitor's GitHub OAuth token"
//	@Success		200	{object}	CommentsResponse
//	@Failure		404	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Router			/posts/{slug}/comments [get]
func (h *Handler) PostComments(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	token := githubToken(r)
	cs, err := h.svc.PostComments(r.Context(), token, slug, h.postURL(r, slug))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrNotConfigured):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("comments are not configured"))
		default:
			slog.Error("post comments failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, CommentsResponse{Comments: cs, Writable: token != "" || h.svc.CommentsConfigured()})
}

// AddPostComment handles POST /api/posts/{slug}/comments.
//
//	@Summary		Add a comment to a post's thread
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			slug			path	string				true	"Post slug"
//	@Param			X-GitHub-Token	header	string				true	"Visitor's GitHub OAuth token"
//	@Param			body			body	AddCommentRequest	true	"Comment body"
//	@Success		201	{object}	models.Comment
//	@Failure		400	{object}	errResponse
//	@Failure		401	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/posts/{slug}/comments [post]
func (h *Handler) AddPostComment(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	token := githubToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("a GitHub token is required to comment"))
		return
	}
	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("body is required"))
		return
	}
	c, err := h.svc.AddPostComment(r.Context(), token, slug, h.postURL(r, slug), req.Body)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrNotConfigured):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("comments are not configured"))
		default:
			slog.Error("add comment failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetPreferences handles GET /api/preferences/{client_id}.
//
//	@Summary		Get reading preferences for a client
//	@Tags			preferences
//	@Produce		json
//	@Param			client_id	path		string	true	"Client identifier"
//	@Success		200			{object}	prefs.Preferences
//	@Router			/preferences/{client_id} [get]
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	p, err := h.prefsDB.Get(clientID)
	if err != nil {
		slog.Error("get preferences failed", slog.String("client_id", clientID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PutPreferences handles PUT /api/preferences/{client_id}.
//
//	@Summary		Replace reading preferences for a client
//	@Tags			preferences
//	@Accept			json
//	@Produce		json
//	@Param			client_id	path	string				true	"Client identifier"
//	@Param			body		body	prefs.Preferences	true	"Preferences"
//	@Success		200	{object}	prefs.Preferences
//	@Failure		400	{object}	errResponse
//	@Router			/preferences/{client_id} [put]
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.prefsDB.Put(clientID, p); err != nil {
		slog.Error("put preferences failed", slog.String("client_id", clientID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePreferences handles DELETE /api/preferences/{client_id}.
//
//	@Summary		Reset reading preferences for a client
//	@Tags			preferences
//	@Param			client_id	path	string	true	"Client identifier"
//	@Success		204	"Preferences reset"
//	@Router			/preferences/{client_id} [delete]
func (h *Handler) DeletePreferences(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	if err := h.prefsDB.Delete(clientID); err != nil {
		slog.Error("delete preferences failed", slog.String("client_id", clientID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
