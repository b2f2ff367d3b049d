// Package server is the composition root: it opens the stores, builds the
// service and handler layers, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → sqlite.DB (sessions) + mongo.Store (profiles, posts)
//	  → auth.SpotifyProvider (OAuth + catalog binding, shared rate limiter)
//	  → SessionService / ProfileService / SocialService
//	  → handlers
//
// Handlers only see service interfaces and services only see repository
// interfaces; the concrete stores are known here and nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/config"
	"github.com/sakif/albumrank/internal/handler"
	"github.com/sakif/albumrank/internal/middleware"
	mongoRepo "github.com/sakif/albumrank/internal/repository/mongo"
	sqliteRepo "github.com/sakif/albumrank/internal/repository/sqlite"
	"github.com/sakif/albumrank/internal/service"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 30 * time.Second
	janitorInterval = time.Hour
)

// Server owns the router, both stores and the session janitor. Start closes
// all of them on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	store   *mongoRepo.Store
	janitor *service.Janitor
}

// New opens the stores and wires every layer.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if dir := filepath.Dir(cfg.SessionDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	store, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		store:  store,
	}
	if err := s.setupRoutes(); err != nil {
		s.closeStores()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes builds the service graph and mounts it.
//
// ROUTES:
//
//	GET    /healthz
//	GET    /auth/spotify/login
//	GET    /auth/spotify/callback
//	POST   /auth/logout
//	GET    /api/me
//	GET    /api/users?q=
//	GET    /api/users/{username}
//	GET    /api/users/{username}/followers
//	GET    /api/users/{username}/following
//	POST   /api/users/{username}/following/{followee}
//	DELETE /api/users/{username}/following/{followee}
//	PUT    /api/users/{username}/albums/{albumId}
//	PATCH  /api/users/{username}/albums/{albumId}
//	DELETE /api/users/{username}/albums/{albumId}
//	POST   /api/posts/{owner}/{albumId}/likes
//	DELETE /api/posts/{owner}/{albumId}/likes
//	GET    /api/feed
//	GET    /api/catalog/...
func (s *Server) setupRoutes() error {
	cfg := s.config

	sealer, err := auth.NewSealer(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token sealer: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// one limiter for the whole process: Spotify throttles per application
	limiter := rate.NewLimiter(rate.Limit(cfg.CatalogRateLimit), max(1, int(cfg.CatalogRateLimit)))
	provider := auth.NewSpotifyProvider(auth.SpotifyConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURL:  cfg.SpotifyRedirectURI,
		Scopes:       cfg.SpotifyScopes,
		TokenTimeout: cfg.CatalogTimeout,
		Catalog: catalog.Options{
			Timeout: cfg.CatalogTimeout,
			Limiter: limiter,
		},
	})

	sessionService := service.NewSessionService(s.db.Sessions(sealer), s.store, provider, tokens, s.logger)
	profileService := service.NewProfileService(s.store, s.store, cfg.EnrichConcurrency, s.logger)
	socialService := service.NewSocialService(s.store, s.store, s.logger)
	s.janitor = service.NewJanitor(sessionService, janitorInterval, s.logger)

	cookies := auth.Cookies{Secure: cfg.CookieSecure}
	authHandler := handler.NewAuthHandler(provider, sessionService, tokens, cookies, cfg.FrontendURL, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/spotify/login", authHandler.HandleLogin)
		r.Get("/spotify/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, sessionService, cookies, s.logger))
		r.Get("/me", authHandler.HandleMe)
		handler.Mount(r, handler.NewProfileHandler(profileService, s.logger),
			handler.NewSocialHandler(socialService, s.logger),
			handler.NewCatalogHandler())
	})

	return nil
}

// handleHealth reports whether both stores answer.
//
// HTTP: GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := errors.Join(s.db.Ping(), s.store.Ping(ctx)); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, "{\"status\":%q}\n", status)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests,
// stops the janitor and closes both stores.
func (s *Server) Start() error {
	defer s.closeStores()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.janitor.Start()
	defer s.janitor.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("mongo_database", s.config.MongoDatabase),
			slog.String("session_db", s.config.SessionDBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) closeStores() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn("closing mongo", slog.String("error", err.Error()))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing session database", slog.String("error", err.Error()))
	}
}
