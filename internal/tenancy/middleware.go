package tenancy

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HeaderTenant names the tenant when the host carries no subdomain.
const HeaderTenant = "X-Tenant"

const contextKey = "tenant"

// Middleware resolves the tenant once per request: host subdomain first,
// then the X-Tenant header, then defaultTenant. Unknown tenants get 404 and
// inactive ones 403.
func Middleware(dir *Directory, rootDomain, defaultTenant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := CorporateIDFromHost(c.Request.Host, rootDomain)
		if slug == "" {
			slug = strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderTenant)))
		}
		if slug == "" {
			slug = defaultTenant
		}
		if slug == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant not resolved"})
			return
		}

		tenant, ok, errLookup := dir.Lookup(c.Request.Context(), slug)
		if errLookup != nil {
			log.WithError(errLookup).Error("tenancy: lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant lookup failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		if !tenant.Active() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant inactive"})
			return
		}
		c.Set(contextKey, tenant)
		c.Next()
	}
}

// FromContext returns the tenant resolved by Middleware.
func FromContext(c *gin.Context) (Tenant, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Tenant{}, false
	}
	tenant, ok := v.(Tenant)
	return tenant, ok
}
