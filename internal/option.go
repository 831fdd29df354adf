package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mcpMode bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCPMode switches the application to MCP stdio transport instead of
// the HTTP server.
func WithMCPMode(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
