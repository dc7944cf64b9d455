package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/api/middleware"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// pagination reads limit and offset query parameters. A missing or out of
// range limit falls back to the default page size.
func pagination(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, fmt.Errorf("invalid limit")
		}
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset")
		}
	}
	return limit, offset, nil
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// actor names the caller in audit records.
func actor(c *gin.Context) string {
	if id, ok := middleware.UserID(c); ok {
		return fmt.Sprintf("user:%d", id)
	}
	return "anonymous"
}
