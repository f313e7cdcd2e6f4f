// Package api serves the candidate repository, the interviewer directory and
// the email dispatcher over HTTP for pipelinectl and the recruiter UI.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
)

// Applications records job applications.
type Applications interface {
	ApplyForJob(ctx context.Context, jobID, candidateID int64) (models.JobApplication, error)
}

// Check reports whether a dependency is usable. Checks back /ready.
type Check func(ctx context.Context) error

type Deps struct {
	Repository   pipeline.CandidateRepository
	Applications Applications
	Directory    pipeline.DirectoryService
	Dispatcher   pipeline.NotificationDispatcher
	Checks       map[string]Check
}

type Server struct {
	echo       *echo.Echo
	deps       Deps
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	timeout    time.Duration
}

func NewServer(deps Deps, log logger.Logger, timeout time.Duration) (*Server, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		deps:       deps,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
		timeout:    timeout,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.observe)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/all-candidates/:jobId", s.handleRoster)
	v1.PUT("/update-status", s.handleUpdateStatus)
	v1.GET("/interview/interviewers/:id/:scope", s.handleInterviews)
	v1.POST("/interview/:appId", s.handleSubmitFeedback)
	v1.GET("/admins/interviewers", s.handleInterviewers)
	v1.POST("/email/schedule-invite", s.handleSendEmail)
	v1.POST("/applications", s.handleApply)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", map[string]interface{}{"addr": addr})
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server", nil)
	return s.echo.Shutdown(ctx)
}

// observe logs and counts every request under its route template.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)

		route := c.Path()
		method := c.Request().Method
		status := c.Response().Status
		metrics.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())

		s.logger.Debug("http request", map[string]interface{}{
			"method":     method,
			"uri":        c.Request().RequestURI,
			"status":     status,
			"durationMs": duration.Milliseconds(),
			"requestId":  c.Response().Header().Get(echo.HeaderXRequestID),
		})
		return nil
	}
}

// handleError answers with the taxonomy envelope. Router errors such as an
// unknown route keep their own status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, apperrors.ErrorBody{Code: apperrors.ErrCodeInternal, Message: msg})
		return
	}

	status, body := s.errHandler.Handle(c.Request().Method+" "+c.Path(), err)
	_ = c.JSON(status, body)
}

func (s *Server) callContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.timeout)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(status, resp)
}
