// Command server runs the recipe API.
//
// Configuration comes from an optional TOML file (CONFIG_PATH), a .env
// file and environment variables; see internal/config.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/recipe-share/internal/config"
	"github.com/sakif/recipe-share/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set; generate one with: openssl rand -hex 32")
		os.Exit(1)
	}
	if !cfg.Auth.GitHub.Enabled() {
		logger.Info("GitHub login disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set)")
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
