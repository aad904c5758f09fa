package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/atikulmunna/sleuth/internal/hub"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Addr  string
	Pprof bool
	// Files lists the paths being watched, reported by /healthz.
	Files func() []string
}

// Server exposes published reports over HTTP and WebSocket.
type Server struct {
	engine  *gin.Engine
	hub     *hub.Hub
	opts    Options
	started time.Time
	log     *zap.Logger
}

// New creates an API server backed by h.
func New(h *hub.Hub, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:  engine,
		hub:     h,
		opts:    opts,
		started: time.Now(),
		log:     logger,
	}

	s.setupRoutes()
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	// Health check.
	s.engine.GET("/healthz", func(c *gin.Context) {
		var files []string
		if s.opts.Files != nil {
			files = s.opts.Files()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"uptime":          time.Since(s.started).Round(time.Second).String(),
			"files_watched":   len(files),
			"dropped_reports": s.hub.Dropped(),
		})
	})

	api := s.engine.Group("/api")
	api.GET("/reports", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Reports())
	})
	api.GET("/reports/recent", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Recent())
	})
	api.GET("/reports/latest", s.handleLatest)

	// WebSocket.
	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !s.opts.Pprof {
		return
	}
	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

func (s *Server) handleLatest(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing path parameter"})
		return
	}
	r, ok := s.hub.Latest(path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for path", "path": path})
		return
	}
	c.JSON(http.StatusOK, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
