// Package server exposes a simulation session over a JSON HTTP API with a
// websocket stream of feed events.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/metrics"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/simulation"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxRequestBody    = 64 << 10
)

// History looks up entries that are no longer in the live feed.
type History interface {
	GetEntry(ctx context.Context, id string) (model.FeedEntry, error)
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory serves /api/entries/:id from h when the feed no longer has it.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server is the HTTP API.
type Server struct {
	session *simulation.Session
	feed    *feed.Feed
	history History
	logger  *slog.Logger
	router  *gin.Engine
	streams *streamer
}

// New builds the router for session.
func New(session *simulation.Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		feed:    session.Feed(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = newStreamer(s.feed, s.logger)

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	s.streams.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("Panic recovered", "error", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
	}))

	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	s.router.Use(metrics.Middleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			s.logger.Error("Request completed", attrs...)
		case status >= 400:
			s.logger.Warn("Request completed", attrs...)
		default:
			s.logger.Debug("Request completed", attrs...)
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", metrics.Handler())

	api := s.router.Group("/api")
	api.GET("/feed", s.feedHandler)
	api.DELETE("/feed", s.clearHandler)
	api.GET("/alerts", s.alertsHandler)
	api.GET("/entries/:id", s.entryHandler)
	api.POST("/simulate/legit", s.simulateHandler(model.SourceLegit))
	api.POST("/simulate/fraud", s.simulateHandler(model.SourceFraud))
	api.POST("/classify", s.classifyHandler)
	api.GET("/stream", func(c *gin.Context) {
		s.streams.serve(c.Writer, c.Request)
	})
}
