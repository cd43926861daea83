package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/gin-gonic/gin"
)

// PlanCacheInvalidator drops cached plan bundles after admin writes.
type PlanCacheInvalidator interface {
	Invalidate(ctx context.Context, planType planconfig.PlanType) error
}

// TenantDirectory is refreshed after tenant writes.
type TenantDirectory interface {
	Invalidate(ctx context.Context)
}

// parseIDParam reads the :id path parameter and answers 400 when it is not a positive integer.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseEnabledQuery maps an is_enabled query value to a filter.
func parseEnabledQuery(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}
