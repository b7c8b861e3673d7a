package shared

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseLimitQuery parses the limit query parameter, falling back to def and capping at max
func ParseLimitQuery(c *gin.Context, def, max int) int {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return def
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
