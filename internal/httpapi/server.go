package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// ServiceName identifies this server in health responses.
const ServiceName = "sentineld"

// Config configures the HTTP server.
type Config struct {
	// Port the server listens on (default: 8080).
	Port int `koanf:"port"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server exposes the recovery engine over HTTP.
type Server struct {
	config Config
	engine recovery.Service
	echo   *echo.Echo
	logger *zap.Logger
}

// NewServer creates the HTTP server with standard middleware and all routes
// registered.
func NewServer(cfg Config, engine recovery.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config: cfg,
		engine: engine,
		echo:   e,
		logger: logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/report", s.handleReport)
	v1.GET("/status", s.handleStatus)
	v1.PUT("/thresholds/:class", s.handleSetThreshold)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: ServiceName,
	})
}

// handleReport ingests one error report. The response is 200 for every
// well-formed request; the outcome says what happened.
func (s *Server) handleReport(c echo.Context) error {
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.ServiceID == "" || req.ErrorClass == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "service_id and error_class are required",
		})
	}

	outcome := s.engine.Report(c.Request().Context(), &recovery.ErrorReport{
		ServiceID:   req.ServiceID,
		ErrorClass:  req.ErrorClass,
		OperationID: req.OperationID,
		Detail:      req.Detail,
		Context:     req.Context,
	})

	return c.JSON(http.StatusOK, ReportResponse{
		Recovered: outcome.Recovered,
		Action:    outcome.Action,
		Message:   outcome.Message,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Status(c.Request().Context()))
}

func (s *Server) handleSetThreshold(c echo.Context) error {
	class := c.Param("class")

	var req ThresholdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if err := s.engine.SetThreshold(class, req.Limit); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Start runs the server and blocks until ctx is cancelled, then shuts down
// gracefully. Returns http.ErrServerClosed on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
