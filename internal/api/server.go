package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/router"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// APIResponse wraps every JSON body the server returns
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WebsiteDiscoverer crawls one website
type WebsiteDiscoverer interface {
	DiscoverWebsiteContent(ctx context.Context, url string) *models.WebsiteContent
}

// CompetitorService runs discovery and single-competitor analysis
type CompetitorService interface {
	DiscoverCompetitors(ctx context.Context, req competitor.Request) (*models.DiscoveryResult, error)
	BusinessContext(ctx context.Context, req competitor.Request) (*models.BusinessContext, error)
	AnalyzeCompetitor(ctx context.Context, domain string, business *models.BusinessContext, serp *models.SearchCandidate) (*models.CompetitorInsight, error)
}

// UsageReporter exposes the model router budgets
type UsageReporter interface {
	Usage() []router.UsageSnapshot
}

// Deps are the services behind the endpoints. Router and Store may be nil.
type Deps struct {
	Websites    WebsiteDiscoverer
	Competitors CompetitorService
	Router      UsageReporter
	Store       db.ResultStore
}

// Options configure the HTTP layer
type Options struct {
	Host           string
	Port           string
	Environment    string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server is the REST API
type Server struct {
	deps   Deps
	opts   Options
	engine *gin.Engine
	now    func() time.Time
}

// NewServer creates the server and registers its routes
func NewServer(deps Deps, opts Options) *Server {
	if opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Minute
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		engine: gin.New(),
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.engine
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware(s.opts.AllowedOrigins))

	r.GET("/health", s.healthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(TimeoutMiddleware(s.opts.RequestTimeout))
	{
		v1.POST("/website", s.discoverWebsite)

		competitors := v1.Group("/competitors")
		{
			competitors.POST("/discover", s.discoverCompetitors)
			competitors.POST("/analyze", s.analyzeCompetitor)
			competitors.GET("/top", s.topCompetitors)
		}

		v1.GET("/router/usage", s.routerUsage)

		v1.GET("/discoveries", s.listDiscoveries)
		v1.GET("/discoveries/:id", s.getDiscovery)
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.opts.Host, s.opts.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   message,
	})
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, competitor.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, competitor.ErrCatalogUnavailable), errors.Is(err, competitor.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, router.ErrModelSaturation):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// healthCheck handles GET /health
func (s *Server) healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now(),
		"version":   Version,
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, APIResponse{
				Success: false,
				Error:   "Database connection failed",
			})
			return
		}
		data["database"] = "connected"
	}

	s.successResponse(c, data)
}
