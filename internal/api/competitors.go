package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
)

// AnalyzeRequest is the body of POST /api/v1/competitors/analyze
type AnalyzeRequest struct {
	Domain   string                  `json:"domain" binding:"required"`
	Business competitor.Request      `json:"business"`
	SERP     *models.SearchCandidate `json:"serp,omitempty"`
}

// discoverCompetitors handles POST /api/v1/competitors/discover
func (s *Server) discoverCompetitors(c *gin.Context) {
	var req competitor.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := s.deps.Competitors.DiscoverCompetitors(c.Request.Context(), req)
	if err != nil {
		s.errorResponse(c, statusFor(err), "Competitor discovery failed: "+err.Error())
		return
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveDiscovery(c.Request.Context(), result); err != nil {
			logger.Warning("Failed to save discovery %s: %v", result.ID, err)
		}
	}

	s.successResponse(c, result)
}

// analyzeCompetitor handles POST /api/v1/competitors/analyze
func (s *Server) analyzeCompetitor(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: domain is required")
		return
	}

	ctx := c.Request.Context()
	business, err := s.deps.Competitors.BusinessContext(ctx, req.Business)
	if err != nil {
		s.errorResponse(c, statusFor(err), "Failed to load business context: "+err.Error())
		return
	}

	insight, err := s.deps.Competitors.AnalyzeCompetitor(ctx, domain, business, req.SERP)
	if err != nil {
		s.errorResponse(c, statusFor(err), "Competitor analysis failed: "+err.Error())
		return
	}

	s.successResponse(c, insight)
}

// topCompetitors handles GET /api/v1/competitors/top
func (s *Server) topCompetitors(c *gin.Context) {
	if s.deps.Store == nil {
		s.errorResponse(c, http.StatusServiceUnavailable, "No result store configured")
		return
	}

	top, err := s.deps.Store.TopCompetitors(c.Request.Context(), c.Query("domain"), queryLimit(c))
	if err != nil {
		s.errorResponse(c, statusFor(err), "Failed to load top competitors: "+err.Error())
		return
	}

	s.successResponse(c, top)
}
