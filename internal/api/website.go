package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/compscout/internal/shared"
)

// WebsiteRequest is the body of POST /api/v1/website
type WebsiteRequest struct {
	URL string `json:"url" binding:"required"`
}

// discoverWebsite handles POST /api/v1/website
func (s *Server) discoverWebsite(c *gin.Context) {
	var req WebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	target := shared.EnsureScheme(req.URL)
	if u, err := url.Parse(target); err != nil || u.Host == "" {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: malformed url")
		return
	}

	content := s.deps.Websites.DiscoverWebsiteContent(c.Request.Context(), target)
	if err := c.Request.Context().Err(); err != nil {
		s.errorResponse(c, statusFor(err), "Website discovery aborted: "+err.Error())
		return
	}

	s.successResponse(c, content)
}
