// Command server runs the album ranking API.
//
// Configuration comes from the environment (see internal/config). The
// required variables are SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET,
// MONGO_URI and SESSION_SECRET.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/albumrank/internal/config"
	"github.com/sakif/albumrank/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
