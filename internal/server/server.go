// Package server is the composition root: it opens the database and the
// image store, builds services and handlers, and mounts the routes.
//
//	config.Config → sqlite.DB, storage.Store, auth.TokenService
//	             → services → handlers → chi router
//
// Handlers never see the database; services never see HTTP.
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

	"github.com/sakif/recipe-share/internal/auth"
	"github.com/sakif/recipe-share/internal/config"
	"github.com/sakif/recipe-share/internal/handler"
	"github.com/sakif/recipe-share/internal/middleware"
	sqliteRepo "github.com/sakif/recipe-share/internal/repository/sqlite"
	"github.com/sakif/recipe-share/internal/service"
	"github.com/sakif/recipe-share/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the resources closed on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	// media is set for the local storage driver, whose files the server
	// serves itself under /media/.
	media *storage.LocalStore
}

// New wires every dependency. It fails without a JWT secret: the CLI can
// run without one, the API cannot.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		return nil, fmt.Errorf("server: auth: %w", err)
	}

	db, err := OpenDB(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	images, err := OpenStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	if local, ok := images.(*storage.LocalStore); ok {
		s.media = local
	}

	s.setupRoutes(tokens, images)
	return s, nil
}

// OpenDB creates the database directory if needed and opens the database.
func OpenDB(path string) (*sqliteRepo.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("server: creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}
	return db, nil
}

// OpenStore builds the configured image store.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	sc := cfg.Storage
	switch sc.Driver {
	case "local":
		store, err := storage.NewLocalStore(sc.LocalDir, sc.PublicURL)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return store, nil
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  sc.S3.Endpoint,
			Region:    sc.S3.Region,
			Bucket:    sc.S3.Bucket,
			AccessKey: sc.S3.AccessKey,
			SecretKey: sc.S3.SecretKey,
			Prefix:    sc.S3.Prefix,
			PublicURL: sc.PublicURL,
			PathStyle: sc.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("server: unknown storage driver %q", sc.Driver)
}

// setupRoutes mounts every endpoint.
//
// Middleware order: RequestID first so the logger can read it, Recoverer
// innermost of the globals so a panic still gets a logged 500.
func (s *Server) setupRoutes(tokens *auth.TokenService, images storage.Store) {
	passwords := auth.NewPasswordService()

	userService := service.NewUserService(s.db, passwords, images, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	ingredientService := service.NewIngredientService(s.db, s.logger)
	tagService := service.NewTagService(s.db, s.logger)
	linkService := service.NewShortLinkService(s.db, s.cfg.Server.BaseURL, s.logger)
	recipeService := service.NewRecipeService(s.db, images, linkService, s.logger)
	relationService := service.NewRelationService(s.db, s.db, s.db, s.logger)
	shoppingService := service.NewShoppingService(s.db, s.db, s.logger)

	var github *auth.GitHubProvider
	if gh := s.cfg.Auth.GitHub; gh.Enabled() {
		github = auth.NewGitHubProvider(gh.ClientID, gh.ClientSecret, gh.CallbackURL)
	}

	pageSize := s.cfg.Server.PageSize
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.logger)
	userHandler := handler.NewUserHandler(userService, relationService, pageSize, s.logger)
	catalogHandler := handler.NewCatalogHandler(ingredientService, tagService, s.logger)
	recipeHandler := handler.NewRecipeHandler(recipeService, relationService, shoppingService, linkService, pageSize, s.logger)

	requireAuth := auth.RequireAuth(tokens, handler.WriteError)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Heartbeat("/healthz"))

	if s.media != nil {
		fileServer := http.FileServer(http.Dir(s.media.Dir()))
		s.router.Handle("/media/*", http.StripPrefix("/media/", fileServer))
	}

	s.router.Get("/r/{token}", recipeHandler.HandleRedirect)
	s.router.Get("/r/{token}/", recipeHandler.HandleRedirect)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		// === Auth ===
		r.Post("/auth/token/login/", authHandler.HandleLogin)
		r.Post("/auth/token/logout/", authHandler.HandleLogout)
		if github != nil {
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}

		// === Users ===
		r.Get("/users/", userHandler.HandleList)
		r.Post("/users/", userHandler.HandleRegister)
		r.Get("/users/{id}/", userHandler.HandleGet)

		// === Catalog ===
		r.Get("/tags/", catalogHandler.HandleListTags)
		r.Get("/tags/{id}/", catalogHandler.HandleGetTag)
		r.Get("/ingredients/", catalogHandler.HandleListIngredients)
		r.Get("/ingredients/{id}/", catalogHandler.HandleGetIngredient)

		// === Recipes (public reads) ===
		r.Get("/recipes/", recipeHandler.HandleList)
		r.Get("/recipes/{id}/", recipeHandler.HandleGet)
		r.Get("/recipes/{id}/get-link/", recipeHandler.HandleGetLink)

		// === Authenticated ===
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/users/me/", userHandler.HandleMe)
			r.Put("/users/me/avatar/", userHandler.HandleSetAvatar)
			r.Delete("/users/me/avatar/", userHandler.HandleDeleteAvatar)
			r.Post("/users/set_password/", userHandler.HandleSetPassword)
			r.Get("/users/subscriptions/", userHandler.HandleSubscriptions)
			r.Post("/users/{id}/subscribe/", userHandler.HandleSubscribe)
			r.Delete("/users/{id}/subscribe/", userHandler.HandleUnsubscribe)

			r.Post("/recipes/", recipeHandler.HandleCreate)
			r.Patch("/recipes/{id}/", recipeHandler.HandleUpdate)
			r.Delete("/recipes/{id}/", recipeHandler.HandleDelete)
			r.Post("/recipes/{id}/favorite/", recipeHandler.HandleFavorite)
			r.Delete("/recipes/{id}/favorite/", recipeHandler.HandleUnfavorite)
			r.Post("/recipes/{id}/shopping_cart/", recipeHandler.HandleAddToCart)
			r.Delete("/recipes/{id}/shopping_cart/", recipeHandler.HandleRemoveFromCart)
			r.Get("/recipes/download_shopping_cart/", recipeHandler.HandleDownloadShoppingCart)
		})
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("baseURL", s.cfg.Server.BaseURL),
			slog.String("database", s.cfg.DB.Path),
			slog.String("storage", s.cfg.Storage.Driver),
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
