// Package http provides the ops API for registryd: worker status, manual
// index triggers, auto-index schedule control, health, and metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/index"
)

// statusTimeout bounds how long a status query may wait behind a running
// indexing cycle.
const statusTimeout = 10 * time.Second

// Indexer is the slice of an index.Worker the API drives.
type Indexer interface {
	Index() error
	StartAutoIndex(interval time.Duration) error
	StopAutoIndex() error
	Status(ctx context.Context) (index.Status, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the workers over HTTP.
type Server struct {
	echo     *echo.Echo
	logger   *zap.Logger
	config   *Config
	indexers map[string]Indexer
}

// NewServer creates the ops server over the given workers, keyed by mirror
// name.
func NewServer(indexers map[string]Indexer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if len(indexers) == 0 {
		return nil, fmt.Errorf("at least one indexer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9190}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		logger:   logger,
		config:   cfg,
		indexers: indexers,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/mirrors", s.handleListMirrors)
	v1.POST("/mirrors/:name/index", s.handleIndex)
	v1.PUT("/mirrors/:name/autoindex", s.handleStartAutoIndex)
	v1.DELETE("/mirrors/:name/autoindex", s.handleStopAutoIndex)
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("http server starting", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListMirrors(c echo.Context) error {
	names := make([]string, 0, len(s.indexers))
	for name := range s.indexers {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]index.Status, 0, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), statusTimeout)
		st, err := s.indexers[name].Status(ctx)
		cancel()
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable,
				fmt.Sprintf("mirror %s: %v", name, err))
		}
		statuses = append(statuses, st)
	}
	return c.JSON(http.StatusOK, map[string]any{"mirrors": statuses})
}

func (s *Server) lookup(c echo.Context) (Indexer, error) {
	name := c.Param("name")
	idx, ok := s.indexers[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown mirror %q", name))
	}
	return idx, nil
}

func (s *Server) handleIndex(c echo.Context) error {
	idx, err := s.lookup(c)
	if err != nil {
		return err
	}
	if err := idx.Index(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// autoIndexRequest is the body for PUT /api/v1/mirrors/:name/autoindex.
type autoIndexRequest struct {
	Interval string `json:"interval"`
}

func (s *Server) handleStartAutoIndex(c echo.Context) error {
	idx, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req autoIndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid interval %q: %v", req.Interval, err))
	}

	if err := idx.StartAutoIndex(interval); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"status":   "scheduled",
		"interval": interval.String(),
	})
}

func (s *Server) handleStopAutoIndex(c echo.Context) error {
	idx, err := s.lookup(c)
	if err != nil {
		return err
	}
	if err := idx.StopAutoIndex(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "stopped"})
}
