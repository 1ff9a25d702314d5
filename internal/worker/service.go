package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/internal/app"
	"github.com/thebtf/ticketsim/internal/config"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/internal/watcher"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout bounds a single request. Batches of uncached
	// analyses against a slow Jira can take a while.
	DefaultHTTPTimeout = 2 * time.Minute

	// MaxRequestBody caps request bodies; inline grouping requests carry
	// whole tickets.
	MaxRequestBody = 4 << 20

	// MaxBatchKeys caps the number of keys in one batch request.
	MaxBatchKeys = 100
)

// Service is the HTTP front of the analyzer.
type Service struct {
	startTime time.Time
	ctx       context.Context

	config   *config.Config
	analyzer *analysis.Analyzer
	vocab    *vocab.Store

	router  *chi.Mux
	server  *http.Server
	limiter *ClientLimiter
	auth    *TokenAuth

	vocabWatcher *watcher.Watcher
	cancel       context.CancelFunc

	version string
	wg      sync.WaitGroup
}

// NewService creates the worker service around wired components.
func NewService(version string, a *app.App) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		config:    a.Config,
		analyzer:  a.Analyzer,
		vocab:     a.Vocab,
		router:    chi.NewRouter(),
		limiter:   NewClientLimiter(a.Config.RateLimitRPS, a.Config.RateLimitBurst),
		auth:      NewTokenAuth(a.Config.AuthToken),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBody))
}

func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleGetStats)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.limiter))
			r.Use(RequireJSONContentType)
			r.Get("/analyze/{key}", s.handleAnalyze)
			r.Post("/analyze/batch", s.handleAnalyzeBatch)
			r.Post("/groups", s.handleGroups)
		})
	})
}

// startWatchers reloads the vocabulary overlay whenever it changes on disk.
func (s *Service) startWatchers() {
	path := s.vocab.Path()
	if path == "" {
		return
	}

	// Reload logs its own outcome.
	w, err := watcher.New(path, func() { _ = s.vocab.Reload() })
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create vocabulary watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to start vocabulary watcher")
		return
	}
	s.vocabWatcher = w
}

// Start begins serving in the background.
func (s *Service) Start() error {
	addr := net.JoinHostPort(s.config.WorkerHost, strconv.Itoa(s.config.WorkerPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	s.startWatchers()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("version", s.version).
		Bool("auth", s.auth.IsEnabled()).
		Msg("Worker HTTP server started")

	return nil
}

// Shutdown stops the watcher and drains in-flight requests.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.vocabWatcher != nil {
		_ = s.vocabWatcher.Stop()
	}

	var err error
	if s.server != nil {
		if err = s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	s.cancel()
	s.wg.Wait()

	log.Info().Msg("Worker service shutdown complete")
	return err
}
