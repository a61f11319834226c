package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"mercator-hq/correlator/pkg/config"
	"mercator-hq/correlator/pkg/middleware"
	"mercator-hq/correlator/pkg/telemetry"
	"mercator-hq/correlator/pkg/telemetry/health"
)

// Engine names accepted in server.engine.
const (
	EngineHTTP = "http"
	EngineGin  = "gin"
)

// DebugTracePath echoes the resolved trace identity of the request.
const DebugTracePath = "/debug/trace"

// Server is the instrumented HTTP server. Operational endpoints (health,
// metrics, debug) are registered next to the application's routes, and
// every route runs under the request lifecycle.
type Server struct {
	cfg       *config.Config
	tel       *telemetry.TelemetryContext
	logger    *slog.Logger
	routes    []func(*http.ServeMux)
	ginRoutes []func(*gin.Engine)

	handler    http.Handler
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// Option configures a Server.
type Option func(*Server)

// WithRoutes registers application routes on the net/http engine.
func WithRoutes(fn func(mux *http.ServeMux)) Option {
	return func(s *Server) { s.routes = append(s.routes, fn) }
}

// WithGinRoutes registers application routes on the gin engine.
func WithGinRoutes(fn func(engine *gin.Engine)) Option {
	return func(s *Server) { s.ginRoutes = append(s.ginRoutes, fn) }
}

// New creates a server for cfg. The handler chain is built immediately.
func New(cfg *config.Config, tel *telemetry.TelemetryContext, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Server.Engine == EngineGin {
		s.handler = s.ginHandler()
	} else {
		s.handler = s.httpHandler()
	}
	return s
}

// Handler returns the instrumented handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"address", ln.Addr().String(),
			"engine", s.engine(),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, srv := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running || srv == nil {
			return
		}

		timeout := s.cfg.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) engine() string {
	if s.cfg.Server.Engine == EngineGin {
		return EngineGin
	}
	return EngineHTTP
}

// httpHandler builds the net/http chain:
//
//	Recovery -> lifecycle -> ServeMux
func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()

	if hc := s.cfg.Telemetry.Health; hc.IsEnabled() {
		s.tel.Health().Register(mux, healthPaths(hc), s.versionInfo())
	}
	if rec := s.tel.Recorder(); rec != nil {
		mux.Handle("GET "+s.cfg.Telemetry.Metrics.Path, rec.Handler(s.tel.Component("metrics")))
	}
	mux.HandleFunc("GET "+DebugTracePath, s.debugTrace)

	for _, fn := range s.routes {
		fn(mux)
	}

	var handler http.Handler = mux
	handler = middleware.HTTP(s.tel.Orchestrator())(handler)
	handler = middleware.Recovery(s.tel.Component("http"))(handler)
	return handler
}

// ginHandler builds the gin engine with the same endpoints.
func (s *Server) ginHandler() http.Handler {
	engine := gin.New()
	engine.Use(
		middleware.GinRecovery(s.tel.Component("http")),
		middleware.Gin(s.tel.Orchestrator()),
	)

	if hc := s.cfg.Telemetry.Health; hc.IsEnabled() {
		checker := s.tel.Health()
		paths := healthPaths(hc)
		probes := []struct {
			path    string
			handler http.HandlerFunc
		}{
			{paths.Liveness, health.RateLimitedHandler(checker.LivenessHandler(), health.DefaultProbeRate)},
			{paths.Readiness, health.RateLimitedHandler(checker.ReadinessHandler(), health.DefaultProbeRate)},
			{paths.Version, health.VersionHandler(s.versionInfo())},
		}
		for _, p := range probes {
			if p.path == "" {
				continue
			}
			engine.GET(p.path, gin.WrapF(p.handler))
			engine.HEAD(p.path, gin.WrapF(p.handler))
		}
	}
	if rec := s.tel.Recorder(); rec != nil {
		engine.GET(s.cfg.Telemetry.Metrics.Path, gin.WrapH(rec.Handler(s.tel.Component("metrics"))))
	}
	engine.GET(DebugTracePath, gin.WrapF(s.debugTrace))

	for _, fn := range s.ginRoutes {
		fn(engine)
	}
	return engine
}

func healthPaths(hc config.HealthConfig) health.Paths {
	return health.Paths{
		Liveness:  hc.LivenessPath,
		Readiness: hc.ReadinessPath,
		Version:   hc.VersionPath,
	}
}

func (s *Server) versionInfo() health.VersionInfo {
	b := s.tel.Build()
	return health.NewVersionInfo(b.Version, b.Commit, b.BuildTime)
}
