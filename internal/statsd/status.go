package statsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatusConfig struct {
	Bind string
	Port int
	Mode string
}

// StatusServer exposes health, aggregator state and self metrics over HTTP.
type StatusServer struct {
	router     *gin.Engine
	config     StatusConfig
	agg        *Aggregator
	metrics    *Metrics
	log        *slog.Logger
	started    time.Time
	httpServer *http.Server
}

func NewStatusServer(config StatusConfig, agg *Aggregator, metrics *Metrics, log *slog.Logger) *StatusServer {
	if config.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StatusServer{
		router:  gin.New(),
		config:  config,
		agg:     agg,
		metrics: metrics,
		log:     log,
		started: time.Now(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Bind, config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *StatusServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/stats", s.stats)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	s.router.NoRoute(s.notFoundHandler)
}

func (s *StatusServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "probekit-statsd",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *StatusServer) stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	snapshot, err := s.agg.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("aggregator_unavailable", err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("aggregator state", snapshot))
}

func (s *StatusServer) notFoundHandler(c *gin.Context) {
	response := errorResponse("not_found", "Endpoint not found")
	response["path"] = c.Request.URL.Path
	c.JSON(http.StatusNotFound, response)
}

func (s *StatusServer) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		s.log.Log(c.Request.Context(), level, "HTTP request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
		)
	}
}

// Start serves until Shutdown is called.
func (s *StatusServer) Start() error {
	s.log.Info("Starting status server", "address", s.httpServer.Addr, "mode", s.config.Mode)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start status server: %w", err)
	}
	return nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown failed: %w", err)
	}
	s.log.Info("Status server stopped")
	return nil
}

func (s *StatusServer) Router() *gin.Engine {
	return s.router
}

func successResponse(message string, data interface{}) gin.H {
	response := gin.H{
		"success":   true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
	if data != nil {
		response["data"] = data
	}
	return response
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"success":   false,
		"error":     code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
}
