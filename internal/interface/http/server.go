// Package http exposes the gamification core over a JSON REST API:
// awards, per-student XP, badges and streaks, leaderboards and health probes.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alem-hub/alem-gamification/internal/application/command"
	"github.com/alem-hub/alem-gamification/internal/application/query"
	"github.com/alem-hub/alem-gamification/internal/interface/http/handlers"
	"github.com/alem-hub/alem-gamification/pkg/logger"
)

// ErrAlreadyStarted is returned by StartAsync on a running server.
var ErrAlreadyStarted = errors.New("http: server already started")

// Config: zero timeouts mean none, except Addr, MaxBodyBytes and Version
// which fall back to DefaultConfig.
type Config struct {
	Addr string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// RequestTimeout bounds the context handed to the application layer.
	RequestTimeout time.Duration

	// MaxBodyBytes caps the award payload.
	MaxBodyBytes int64

	// Version is reported by /health when no checker is wired.
	Version string
}

func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
		RequestTimeout:    10 * time.Second,
		MaxBodyBytes:      64 << 10,
		Version:           "v1",
	}
}

// Dependencies: a nil handler makes its routes answer 501.
type Dependencies struct {
	AwardHandler          *command.AwardHandler
	XPHandler             *query.XPHandler
	GetBadgesHandler      *query.GetBadgesHandler
	GetStreakHandler      *query.GetStreakHandler
	GetLeaderboardHandler *query.GetLeaderboardHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// Server serves the API until Shutdown.
type Server struct {
	config Config
	deps   Dependencies
	logger *logger.Logger
	http   *http.Server

	// startedAt is unix nanos while serving, 0 otherwise.
	startedAt atomic.Int64
}

func NewServer(config Config, deps Dependencies) *Server {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.Version == "" {
		config.Version = def.Version
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	s := &Server{config: config, deps: deps, logger: deps.Logger}
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.routes(),
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return s
}

// Handler is the router with every middleware applied.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// routes builds the mux and wraps it; the outermost middleware is listed last.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// ─── probes ───
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)

	// ─── API v1 ───
	mux.HandleFunc("POST /api/v1/awards", s.handleAward)
	mux.HandleFunc("GET /api/v1/students/{id}/xp", s.handleGetXP)
	mux.HandleFunc("GET /api/v1/students/{id}/xp/breakdown", s.handleGetXPBreakdown)
	mux.HandleFunc("GET /api/v1/students/{id}/badges", s.handleGetBadges)
	mux.HandleFunc("GET /api/v1/students/{id}/streak", s.handleGetStreak)
	mux.HandleFunc("GET /api/v1/leaderboard", s.handleGetLeaderboard)

	var h http.Handler = mux
	h = withTimeout(h, s.config.RequestTimeout)
	h = withRecovery(h)
	h = withAccessLog(h)
	h = withRequestID(h, s.logger)
	return h
}

// StartAsync binds the listener before returning, so a busy port is reported
// at once, then serves in the background. The channel yields at most one
// error and is closed when serving stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	if !s.startedAt.CompareAndSwap(0, time.Now().UnixNano()) {
		errCh <- ErrAlreadyStarted
		close(errCh)
		return errCh
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.startedAt.Store(0)
		errCh <- err
		close(errCh)
		return errCh
	}
	s.logger.Info("starting HTTP server", logger.String("address", ln.Addr().String()))

	go func() {
		defer close(errCh)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires. A server that was
// never started returns nil.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.startedAt.Swap(0) == 0 {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}

// Uptime is zero unless the server is serving.
func (s *Server) Uptime() time.Duration {
	started := s.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}
