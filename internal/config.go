package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config is the full application configuration, loaded from YAML.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Search  SearchConfig      `yaml:"search"`
	GitHub  GitHubConfig      `yaml:"github"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate checks every section and returns the first failure.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.App, &c.Content, &c.SQLite, &c.Search, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds process-level settings.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// SiteURL is the public origin used when composing post permalinks.
	// Derived from the request when empty.
	SiteURL string `yaml:"site_url"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the listen address for the configured port.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig points at the Markdown posts directory.
type ContentConfig struct {
	Path string `yaml:"path"`
}

func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig locates the reading-preferences database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SearchConfig holds the default query-time search settings.
type SearchConfig struct {
	IncludeContent   bool    `yaml:"include_content"`
	Threshold        float64 `yaml:"threshold"`
	MinLength        int     `yaml:"min_length"`
	HighlightMatches bool    `yaml:"highlight_matches"`
}

func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MinLength, validation.Min(1)),
	)
}

// GitHubConfig wires the comment backend and the OAuth relay. All fields
// are optional; leaving Owner/Repo empty disables comments, and leaving
// ClientID/ClientSecret empty disables the OAuth relay.
type GitHubConfig struct {
	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	Token        string `yaml:"token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	FrontendURL  string `yaml:"frontend_url"`
}

// CommentsConfigured reports whether a comment repository is set.
func (c *GitHubConfig) CommentsConfigured() bool {
	return c.Owner != "" && c.Repo != ""
}

// OAuthConfigured reports whether the OAuth relay can operate.
func (c *GitHubConfig) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// AuthConfig guards the mutating API routes. Mode "disabled" leaves every
// route open, which is the right default for local writing. Mode "token"
// requires a Bearer token matching Token.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: token mode needs a non-empty token")
	}
	return nil
}

// AuthEnabled reports whether mutating routes require a token.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns the configuration used when no file is present.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Path: "./posts",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Search: SearchConfig{
			IncludeContent:   true,
			Threshold:        0.4,
			MinLength:        1,
			HighlightMatches: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
