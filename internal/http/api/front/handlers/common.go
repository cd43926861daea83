package handlers

import (
	"net/http"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/tenancy"
	"github.com/gin-gonic/gin"
)

// ContextKeySubject holds the verified employee id on the gin context.
const ContextKeySubject = "employeeID"

// requestIdentity returns the tenant and employee set by the front
// middleware chain.
func requestIdentity(c *gin.Context) (tenancy.Tenant, string, bool) {
	tenant, ok := tenancy.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant not resolved"})
		return tenancy.Tenant{}, "", false
	}
	subject := c.GetString(ContextKeySubject)
	if subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return tenancy.Tenant{}, "", false
	}
	return tenant, subject, true
}

// planKeyFor builds the key for the tenant. A blank country falls back to
// the tenant's home country.
func planKeyFor(tenant tenancy.Tenant, planType, countryCode string) (planconfig.Key, error) {
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		countryCode = tenant.CountryCode
	}
	if countryCode == "" {
		countryCode = string(planconfig.CountryGlobal)
	}
	return planconfig.NewKey(planType, tenant.Slug, countryCode)
}
