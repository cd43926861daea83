package front

import (
	"net/http"
	"strconv"

	"github.com/corpbenefits/benefits-platform/internal/config"
	"github.com/corpbenefits/benefits-platform/internal/enrollment"
	"github.com/corpbenefits/benefits-platform/internal/http/api/front/handlers"
	"github.com/corpbenefits/benefits-platform/internal/ratelimit"
	"github.com/corpbenefits/benefits-platform/internal/security"
	"github.com/corpbenefits/benefits-platform/internal/tenancy"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Deps are the components the employee-facing routes run on.
type Deps struct {
	JWT           config.JWTConfig
	Directory     *tenancy.Directory
	RootDomain    string
	DefaultTenant string
	Loader        handlers.ConfigLoader
	Sessions      *enrollment.Sessions
	Submitter     enrollment.Submitter
	Limiter       *ratelimit.Manager
}

// RegisterFrontRoutes registers employee routes. Every route runs under the
// tenant resolved from the host, an employee token and the rate limiter.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Directory == nil || deps.Loader == nil || deps.Sessions == nil {
		return
	}

	authed := r.Group("/v0/front")
	authed.Use(tenancy.Middleware(deps.Directory, deps.RootDomain, deps.DefaultTenant))
	authed.Use(employeeAuthMiddleware(deps.JWT))
	authed.Use(rateLimitMiddleware(deps.Limiter))

	configHandler := handlers.NewPlanConfigFrontHandler(deps.Loader)
	authed.GET("/plan-options", configHandler.Options)
	authed.GET("/plan-config", configHandler.Get)
	authed.GET("/form-schema", configHandler.FormSchema)
	authed.POST("/summary", configHandler.Summary)

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Submitter)
	authed.POST("/sessions", sessionHandler.Create)
	authed.GET("/sessions/:id", sessionHandler.Get)
	authed.PUT("/sessions/:id/key", sessionHandler.SetKey)
	authed.PUT("/sessions/:id/profile", sessionHandler.SetProfile)
	authed.GET("/sessions/:id/schema", sessionHandler.Schema)
	authed.POST("/sessions/:id/changes", sessionHandler.Change)
	authed.GET("/sessions/:id/summary", sessionHandler.Summary)
	authed.POST("/sessions/:id/submit", sessionHandler.Submit)
}

// employeeAuthMiddleware validates the bearer token and pins it to the
// resolved tenant when the token carries a tenant claim.
func employeeAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errToken := security.BearerToken(c.GetHeader("Authorization"))
		if errToken != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		tenant, ok := tenancy.FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant not resolved"})
			return
		}
		if claims.Tenant != "" && claims.Tenant != tenant.Slug {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not valid for tenant"})
			return
		}
		c.Set(handlers.ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// rateLimitMiddleware enforces the tenant's per-employee limit. Limiter
// failures let the request through.
func rateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		tenant, _ := tenancy.FromContext(c)
		result, decision, errCheck := limiter.Check(c.Request.Context(), tenant.Slug, c.GetString(handlers.ContextKeySubject), tenant.RateLimit)
		if errCheck != nil {
			log.WithError(errCheck).Warn("front: rate limit check failed")
			c.Next()
			return
		}
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			if !result.Reset.IsZero() {
				c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
