package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homemade/hubsync/sync"
)

// Server is the HTTP surface of the relay. All state is immutable after
// construction; requests share nothing but the configuration and the two
// portal clients.
type Server struct {
	cfg    sync.Config
	source *sync.HubSpotAPI
	dest   *sync.HubSpotAPI
	logger *log.Logger
	now    func() time.Time
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithClients substitutes the portal clients (used in tests).
func WithClients(source *sync.HubSpotAPI, dest *sync.HubSpotAPI) Option {
	return func(s *Server) {
		s.source = source
		s.dest = dest
	}
}

// WithLogger substitutes the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock substitutes the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(cfg sync.Config, opts ...Option) *Server {
	result := &Server{
		cfg:    cfg,
		logger: log.Default(),
		now:    time.Now,
	}
	if cfg.SourceToken != "" {
		result.source = sync.NewHubSpotAPI(cfg.SourceToken)
	}
	if cfg.DestToken != "" {
		result.dest = sync.NewHubSpotAPI(cfg.DestToken)
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}

// syncer returns the orchestrator, or nil when either token is missing.
func (s *Server) syncer() *sync.Syncer {
	if s.source == nil || s.dest == nil {
		return nil
	}
	return &sync.Syncer{
		Mapping: s.cfg.Mapping,
		Source:  s.source,
		Dest:    s.dest,
	}
}

// Handler builds the route table with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhooks/hubspot", s.handleWebhook)
	mux.HandleFunc("/test/sync/{contactId}", s.handleTestSync)
	mux.HandleFunc("GET /test/connection", s.handleTestConnection)
	mux.Handle("GET /metrics", promhttp.Handler())
	return applyMiddlewares(mux, []Middleware{
		requestLogMiddleware(s.logger),
		metricsMiddleware(),
	})
}

// RunConfig starts the server with signal handling until interrupted.
func RunConfig(cfg sync.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return Run(ctx, cfg, log.Default())
}

// Run starts the server until the context is canceled.
func Run(ctx context.Context, cfg sync.Config, logger *log.Logger) error {
	if !cfg.TokensConfigured() {
		logger.Printf("Warning: HubSpot tokens missing - the server will start but syncing won't work until they are set")
	}

	srv := New(cfg, WithLogger(logger))
	addr := ":" + strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}
