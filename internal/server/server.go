// Package server wires the application together: it builds the dependency
// graph, registers routes and middleware, and owns startup and graceful
// shutdown. Handlers, services, and repositories know nothing about each
// other's construction; this is the composition root.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rdp/drivex-backend/internal/auth"
	"github.com/rdp/drivex-backend/internal/config"
	"github.com/rdp/drivex-backend/internal/handler"
	"github.com/rdp/drivex-backend/internal/mail"
	"github.com/rdp/drivex-backend/internal/middleware"
	sqliteRepo "github.com/rdp/drivex-backend/internal/repository/sqlite"
	"github.com/rdp/drivex-backend/internal/resettoken"
	"github.com/rdp/drivex-backend/internal/service"
	"github.com/rdp/drivex-backend/internal/storage"
)

// Rate limit for the unauthenticated auth endpoints. Generous for humans,
// hostile to credential stuffing.
const (
	authRatePerSecond = 5
	authRateBurst     = 10
)

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	ledger *resettoken.Ledger
}

// New builds the full dependency graph and registers every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		ledger: resettoken.New(resettoken.DefaultTTL, logger),
	}
	s.setupRoutes(tokens)
	return s, nil
}

func (s *Server) setupRoutes(tokens *auth.TokenService) {
	passwords := auth.NewPasswordService()
	verifier := auth.NewSupabaseVerifier(s.cfg.SupabaseJWTSecret, s.cfg.SupabaseURL, s.cfg.SupabaseServiceKey)
	store := storage.NewClient(s.cfg.SupabaseURL, s.cfg.SupabaseServiceKey, s.cfg.SupabaseBucket)
	mailer := mail.NewDispatcher(
		s.cfg.SMTPHost, s.cfg.SMTPPort,
		s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.MailFrom,
		s.cfg.SMTPConfigured(), s.logger,
	)

	authSvc := service.NewAuthService(
		s.db, tokens, passwords, verifier, store, s.ledger, mailer,
		s.cfg.FrontendURL, s.cfg.JWTExpiresIn, s.logger,
	)
	fileSvc := service.NewFileService(s.db, s.db, store, s.cfg.MaxFileSize, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, s.logger)
	fileHandler := handler.NewFileHandler(fileSvc, s.cfg.MaxRequestSize, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics())
	s.router.Use(middleware.CORS(s.cfg.CORSAllowedOrigins))
	s.router.Use(middleware.MaxBodyBytes(s.cfg.MaxRequestSize))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Public auth endpoints, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(authRatePerSecond, authRateBurst))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/google", authHandler.FederatedLogin)
			r.Post("/auth/forgot-password", authHandler.ForgotPassword)
			r.Post("/auth/reset-password", authHandler.ResetPassword)
		})

		// Everything below needs a valid session token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Get("/auth/me", authHandler.Me)

			r.Post("/files/upload", fileHandler.Upload)
			r.Get("/files", fileHandler.List)
			r.Get("/files/usage", fileHandler.Usage)
			r.Get("/files/{id}", fileHandler.Get)
			r.Delete("/files/{id}", fileHandler.Delete)
			r.Post("/files/{id}/restore", fileHandler.Restore)
			r.Get("/files/{id}/download", fileHandler.Download)
		})
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests and releases the database and the reset-token ledger.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.ledger.Shutdown()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
