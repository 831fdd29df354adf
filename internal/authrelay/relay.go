// Package authrelay implements the GitHub OAuth authorization-code relay:
// the frontend never sees the client secret, only the issued access token.
package authrelay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v73/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

// Relay performs the standard three-step OAuth2 code exchange against GitHub.
type Relay struct {
	conf        *oauth2.Config
	frontendURL string
	logger      *slog.Logger

	// apiBaseURL overrides the GitHub API endpoint in tests.
	apiBaseURL string
}

// New creates a relay. frontendURL is where the callback redirects readers
// back to, with the token and user data in query parameters.
func New(clientID, clientSecret, frontendURL string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauthgithub.Endpoint,
			Scopes:       []string{"public_repo"},
		},
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// IsConfigured reports whether OAuth credentials are present.
func (rl *Relay) IsConfigured() bool {
	return rl.conf.ClientID != "" && rl.conf.ClientSecret != ""
}

// SetEndpoints overrides the OAuth and API endpoints (tests).
func (rl *Relay) SetEndpoints(authURL, tokenURL, apiBaseURL string) {
	rl.conf.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	rl.apiBaseURL = apiBaseURL
}

// Routes returns the relay's routes, mounted at /auth by the caller.
func (rl *Relay) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/github", rl.handleAuthURL)
	r.Get("/github/callback", rl.handleCallback)
	r.Post("/verify", rl.handleVerify)
	return r
}

// handleAuthURL returns the authorization URL, a fresh state value, and the
// redirect URI; the frontend performs the redirect itself.
func (rl *Relay) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	if !rl.IsConfigured() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "oauth not configured"})
		return
	}
	state := uuid.NewString()
	redirectURI := rl.redirectURI(r)

	authURL := rl.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	respondJSON(w, http.StatusOK, map[string]string{
		"authUrl":     authURL,
		"state":       state,
		"redirectUri": redirectURI,
	})
}

// handleCallback exchanges the authorization code, fetches the user, and
// redirects back to the frontend. All failure paths redirect with error and
// message parameters rather than rendering anything here.
func (rl *Relay) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		rl.redirectError(w, r, "no_code", "")
		return
	}

	ctx := r.Context()
	tok, err := rl.conf.Exchange(ctx, code,
		oauth2.SetAuthURLParam("redirect_uri", rl.redirectURI(r)))
	if err != nil {
		rl.logger.Warn("authrelay: code exchange failed", slog.String("error", err.Error()))
		rl.redirectError(w, r, "oauth_failed", err.Error())
		return
	}

	user, err := rl.fetchUser(r, tok.AccessToken)
	if err != nil {
		rl.logger.Warn("authrelay: user fetch failed", slog.String("error", err.Error()))
		rl.redirectError(w, r, "oauth_failed", err.Error())
		return
	}

	userData, _ := json.Marshal(user)
	dest, err := url.Parse(rl.frontendURL)
	if err != nil {
		http.Error(w, "bad frontend url", http.StatusInternalServerError)
		return
	}
	q := dest.Query()
	q.Set("oauth_success", "true")
	q.Set("access_token", tok.AccessToken)
	q.Set("user_data", string(userData))
	dest.RawQuery = q.Encode()

	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// handleVerify checks a token by fetching the authenticated user.
func (rl *Relay) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "token is required"})
		return
	}

	user, err := rl.fetchUser(r, req.Token)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]any{
			"valid": false,
			"error": "invalid token",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  user,
	})
}

// User is the reader identity surfaced to the frontend.
type User struct {
	ID     int64  `json:"id"`
	Login  string `json:"login"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (rl *Relay) fetchUser(r *http.Request, token string) (*User, error) {
	ctx := r.Context()
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	cl := github.NewClient(hc)
	if rl.apiBaseURL != "" {
		if u, parseErr := url.Parse(rl.apiBaseURL); parseErr == nil {
			cl.BaseURL = u
		}
	}
	u, _, err := cl.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("authrelay: fetch user: %w", err)
	}
	return &User{
		ID:     u.GetID(),
		Login:  u.GetLogin(),
		Name:   u.GetName(),
		Avatar: u.GetAvatarURL(),
		Email:  u.GetEmail(),
	}, nil
}

// redirectURI rebuilds the callback address the way the relay is reachable
// from outside, honoring proxy headers.
func (rl *Relay) redirectURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/auth/github/callback", scheme, r.Host)
}

func (rl *Relay) redirectError(w http.ResponseWriter, r *http.Request, code, message string) {
	dest, err := url.Parse(rl.frontendURL)
	if err != nil {
		http.Error(w, "bad frontend url", http.StatusInternalServerError)
		return
	}
	q := dest.Query()
	q.Set("error", code)
	if message != "" {
		q.Set("message", message)
	}
	dest.RawQuery = q.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
