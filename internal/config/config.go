// Package config loads process configuration from the environment.
//
// Everything is read once at start-up. Credentials carry the `,required`
// option so a missing one fails at boot instead of on the first login.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	Port     int    `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SpotifyClientID     string   `env:"SPOTIFY_CLIENT_ID,required,notEmpty"`
	SpotifyClientSecret string   `env:"SPOTIFY_CLIENT_SECRET,required,notEmpty"`
	SpotifyRedirectURI  string   `env:"SPOTIFY_REDIRECT_URI" envDefault:"http://localhost:8080/auth/spotify/callback"`
	SpotifyScopes       []string `env:"SPOTIFY_SCOPES"       envDefault:"user-read-private,user-read-email,playlist-read-private" envSeparator:","`

	MongoURI      string `env:"MONGO_URI,required,notEmpty"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"appDb"`

	SessionDBPath string        `env:"SESSION_DB_PATH" envDefault:"data/sessions.db"`
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL"     envDefault:"720h"`
	CookieSecure  bool          `env:"COOKIE_SECURE"   envDefault:"false"`
	FrontendURL   string        `env:"FRONTEND_URL"    envDefault:"/"`

	CatalogTimeout    time.Duration `env:"CATALOG_TIMEOUT"    envDefault:"5s"`
	CatalogRateLimit  float64       `env:"CATALOG_RATE_LIMIT" envDefault:"10"`
	EnrichConcurrency int           `env:"ENRICH_CONCURRENCY" envDefault:"8"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("config: SESSION_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("config: CATALOG_TIMEOUT must be positive")
	}
	if c.CatalogRateLimit <= 0 {
		return fmt.Errorf("config: CATALOG_RATE_LIMIT must be positive")
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("config: ENRICH_CONCURRENCY must be at least 1")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
