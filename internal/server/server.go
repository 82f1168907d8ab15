// ABOUTME: Server orchestrator that assembles store, realtime, services and HTTP
// ABOUTME: Manages the HTTP server lifecycle with graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/config"
	"github.com/impulsalab/crm-core/internal/conversation"
	"github.com/impulsalab/crm-core/internal/dedupe"
	"github.com/impulsalab/crm-core/internal/ingest"
	"github.com/impulsalab/crm-core/internal/realtime"
	"github.com/impulsalab/crm-core/internal/store"
	"github.com/impulsalab/crm-core/internal/webadmin"
)

// Server assembles the crm-core components: the SQLite store, the in-memory
// realtime broadcaster, the conversation and ingestion services, and the
// HTTP surface (API, webhooks, web admin, health).
type Server struct {
	config       *config.Config
	store        store.Store
	broadcaster  *realtime.Broadcaster
	verifier     *auth.JWTVerifier
	conversation *conversation.Service
	ingest       *ingest.Service
	window       *dedupe.Window
	webAdmin     *webadmin.Admin
	httpServer   *http.Server
	logger       *slog.Logger
}

// New wires a server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	broadcaster := realtime.NewBroadcaster(logger)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	resolver := auth.NewResolver(st, logger)
	convService := conversation.New(st, resolver, broadcaster, logger)

	window := dedupe.NewWindow(cfg.Ingest.DedupeTTL, cfg.Ingest.DedupeMaxSize)
	ingestService := ingest.New(st, window, broadcaster, logger)

	s := &Server{
		config:       cfg,
		store:        st,
		broadcaster:  broadcaster,
		verifier:     verifier,
		conversation: convService,
		ingest:       ingestService,
		window:       window,
		logger:       logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	s.registerAPIRoutes(mux)

	if cfg.WebAdmin.Enabled {
		s.webAdmin = webadmin.New(st, webadmin.Config{BaseURL: webAdminBaseURL(cfg)}, logger)
		s.webAdmin.RegisterRoutes(mux)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// webAdminBaseURL resolves the external admin URL from config.
func webAdminBaseURL(cfg *config.Config) string {
	if cfg.WebAdmin.BaseURL != "" {
		return cfg.WebAdmin.BaseURL
	}
	return "http://" + cfg.Server.HTTPAddr
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown shuts down with a fresh context and timeout. Uses
// context.Background() intentionally since the run context is already
// canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes all components.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.broadcaster.Close()
	s.window.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
