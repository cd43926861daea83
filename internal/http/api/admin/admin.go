package admin

import (
	"net/http"

	"github.com/corpbenefits/benefits-platform/internal/config"
	handlers "github.com/corpbenefits/benefits-platform/internal/http/api/admin/handlers"
	"github.com/corpbenefits/benefits-platform/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
// dir and cache may be nil.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, dir handlers.TenantDirectory, cache handlers.PlanCacheInvalidator) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	authed := r.Group("/v0/admin")
	authed.Use(adminAuthMiddleware(jwtCfg))

	tenantHandler := handlers.NewTenantHandler(db, dir)
	authed.POST("/tenants", tenantHandler.Create)
	authed.GET("/tenants", tenantHandler.List)
	authed.GET("/tenants/:id", tenantHandler.Get)
	authed.PUT("/tenants/:id", tenantHandler.Update)
	authed.POST("/tenants/:id/activate", tenantHandler.Activate)
	authed.POST("/tenants/:id/deactivate", tenantHandler.Deactivate)

	planConfigHandler := handlers.NewPlanConfigHandler(db, cache)
	authed.POST("/plan-configs", planConfigHandler.Create)
	authed.GET("/plan-configs", planConfigHandler.List)
	authed.GET("/plan-configs/effective", planConfigHandler.Effective)
	authed.GET("/plan-configs/:id", planConfigHandler.Get)
	authed.PUT("/plan-configs/:id", planConfigHandler.Update)
	authed.DELETE("/plan-configs/:id", planConfigHandler.Delete)
	authed.POST("/plan-configs/:id/enable", planConfigHandler.Enable)
	authed.POST("/plan-configs/:id/disable", planConfigHandler.Disable)

	overrideHandler := handlers.NewPlanOverrideHandler(db, cache)
	authed.POST("/plan-overrides", overrideHandler.Create)
	authed.GET("/plan-overrides", overrideHandler.List)
	authed.GET("/plan-overrides/:id", overrideHandler.Get)
	authed.PUT("/plan-overrides/:id", overrideHandler.Update)
	authed.DELETE("/plan-overrides/:id", overrideHandler.Delete)
	authed.POST("/plan-overrides/:id/enable", overrideHandler.Enable)
	authed.POST("/plan-overrides/:id/disable", overrideHandler.Disable)

	enrollmentHandler := handlers.NewEnrollmentHandler(db)
	authed.GET("/enrollments", enrollmentHandler.List)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
}

// adminAuthMiddleware validates admin bearer tokens issued by the identity provider.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
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
		if claims.Role != security.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Set("adminSubject", claims.Subject)
		c.Next()
	}
}
