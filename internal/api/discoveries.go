package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/shared"
)

// MaxListLimit caps the limit query parameter
const MaxListLimit = 100

func queryLimit(c *gin.Context) int {
	return shared.ParseLimitQuery(c, db.DefaultListLimit, MaxListLimit)
}

// listDiscoveries handles GET /api/v1/discoveries
func (s *Server) listDiscoveries(c *gin.Context) {
	if s.deps.Store == nil {
		s.errorResponse(c, http.StatusServiceUnavailable, "No result store configured")
		return
	}

	results, err := s.deps.Store.ListDiscoveries(c.Request.Context(), c.Query("domain"), queryLimit(c))
	if err != nil {
		s.errorResponse(c, statusFor(err), "Failed to list discoveries: "+err.Error())
		return
	}

	s.successResponse(c, results)
}

// getDiscovery handles GET /api/v1/discoveries/:id
func (s *Server) getDiscovery(c *gin.Context) {
	if s.deps.Store == nil {
		s.errorResponse(c, http.StatusServiceUnavailable, "No result store configured")
		return
	}

	result, err := s.deps.Store.GetDiscovery(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.errorResponse(c, statusFor(err), "Discovery not found: "+err.Error())
		return
	}

	s.successResponse(c, result)
}

// routerUsage handles GET /api/v1/router/usage
func (s *Server) routerUsage(c *gin.Context) {
	if s.deps.Router == nil {
		s.errorResponse(c, http.StatusServiceUnavailable, "No model router configured")
		return
	}
	s.successResponse(c, s.deps.Router.Usage())
}
