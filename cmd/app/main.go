package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := internal.NewDefaultConfig()

	path := cmd.String("config")
	found, err := pkgconfig.LoadIfExists(path, cfg)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if !found {
		slog.Warn("no config file, running on defaults", slog.String("path", path))
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("default config rejected: %w", err)
		}
	}

	return internal.Run(ctx,
		internal.WithConfig(cfg),
		internal.WithMCPMode(cmd.Bool("mcp")),
	)
}

func main() {
	app := &cli.Command{
		Name:   "ansuz",
		Usage:  "Markdown blog engine with fuzzy search, GitHub-backed comments, and live updates",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file location",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "mcp",
				Usage:   "Serve MCP tools on stdio instead of the HTTP API",
				Sources: cli.EnvVars("APP_MCP_MODE"),
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
