package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/config"
	"github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/enrollment"
	"github.com/corpbenefits/benefits-platform/internal/http/api/admin"
	"github.com/corpbenefits/benefits-platform/internal/http/api/front"
	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/ratelimit"
	internalsettings "github.com/corpbenefits/benefits-platform/internal/settings"
	"github.com/corpbenefits/benefits-platform/internal/tenancy"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterIdleAfter = 10 * time.Minute
)

// Components are the long-lived services the HTTP routes run on.
type Components struct {
	Config    config.Config
	DB        *gorm.DB
	Directory *tenancy.Directory
	Cache     *planconfig.RedisCache
	Loader    *planconfig.Loader
	Sessions  *enrollment.Sessions
	Submitter enrollment.Submitter
	Limiter   *ratelimit.Manager

	redisClient *redis.Client
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	serviceCfg, errLoad := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := openDatabase(serviceCfg)
	if errOpen != nil {
		return errOpen
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	if tenant := serviceCfg.Tenancy.DefaultTenant; tenant != "" {
		if _, errEnsure := db.EnsureTenant(conn, tenant, tenant, string(planconfig.CountryGlobal)); errEnsure != nil {
			return errEnsure
		}
	}
	return nil
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, config.ErrMissingDatabaseDSN
	}
	info, errDescribe := db.DescribeDSN(dsn)
	if errDescribe != nil {
		return nil, errDescribe
	}
	log.Infof("opening database %s", info)
	return db.Open(dsn)
}

// NewComponents wires the services for cfg over an open, migrated database.
func NewComponents(ctx context.Context, cfg config.Config, conn *gorm.DB) (*Components, error) {
	if conn == nil {
		return nil, fmt.Errorf("app: nil database")
	}
	c := &Components{Config: cfg, DB: conn}

	c.Directory = tenancy.NewDirectory(conn)
	if errRefresh := c.Directory.Refresh(ctx); errRefresh != nil {
		return nil, errRefresh
	}

	if cfg.Redis.Enabled {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.Cache = planconfig.NewRedisCache(c.redisClient, cfg.Redis.Prefix, cfg.Redis.CacheTTL)
	}

	var source planconfig.Source
	switch cfg.PlanSource {
	case internalsettings.PlanSourceRemote:
		source = planconfig.NewRESTSource(cfg.BackendBaseURL, &http.Client{Timeout: cfg.FetchTimeout})
	default:
		source = planconfig.NewStoreSource(conn)
	}
	opts := []planconfig.LoaderOption{planconfig.WithTimeout(cfg.FetchTimeout)}
	if c.Cache != nil {
		opts = append(opts, planconfig.WithCache(c.Cache))
	}
	c.Loader = planconfig.NewLoader(source, opts...)

	switch cfg.EnrollmentSink {
	case internalsettings.EnrollmentSinkGraphQL:
		c.Submitter = enrollment.NewGraphQLSubmitter(cfg.GraphQLEndpoint, cfg.GraphQLToken, &http.Client{Timeout: cfg.FetchTimeout})
	default:
		c.Submitter = enrollment.NewStoreSubmitter(conn)
	}

	c.Sessions = enrollment.NewSessions(c.Loader, cfg.Session.TTL)
	c.Limiter = ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsFromConfig(cfg)), nil, nil)
	return c, nil
}

// Close releases Redis connections.
func (c *Components) Close() {
	if c == nil {
		return
	}
	if errClose := c.Limiter.Close(); errClose != nil {
		log.WithError(errClose).Warn("close rate limiter failed")
	}
	if c.redisClient != nil {
		if errClose := c.redisClient.Close(); errClose != nil {
			log.WithError(errClose).Warn("close redis client failed")
		}
	}
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(c *Components) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(metrics.GinMiddleware())

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	var cache interface {
		Invalidate(ctx context.Context, planType planconfig.PlanType) error
	}
	if c.Cache != nil {
		cache = c.Cache
	}
	admin.RegisterAdminRoutes(engine, c.DB, c.Config.JWT, c.Directory, cache)
	front.RegisterFrontRoutes(engine, front.Deps{
		JWT:           c.Config.JWT,
		Directory:     c.Directory,
		RootDomain:    c.Config.Tenancy.RootDomain,
		DefaultTenant: c.Config.Tenancy.DefaultTenant,
		Loader:        c.Loader,
		Sessions:      c.Sessions,
		Submitter:     c.Submitter,
		Limiter:       c.Limiter,
	})
	return engine
}

// RunServer boots the HTTP service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	serviceCfg, errLoad := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	if defaultPort > 0 && serviceCfg.Port == internalsettings.DefaultPort {
		serviceCfg.Port = defaultPort
	}
	if serviceCfg.JWT.Secret == "" {
		log.Warn("jwt secret is empty; every authenticated route will reject requests")
	}
	if !serviceCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	conn, errOpen := openDatabase(serviceCfg)
	if errOpen != nil {
		return errOpen
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if tenant := serviceCfg.Tenancy.DefaultTenant; tenant != "" {
		created, errEnsure := db.EnsureTenant(conn, tenant, tenant, string(planconfig.CountryGlobal))
		if errEnsure != nil {
			return errEnsure
		}
		if created {
			log.Infof("created default tenant %s", tenant)
		}
	}

	components, errComponents := NewComponents(ctx, serviceCfg, conn)
	if errComponents != nil {
		return errComponents
	}
	defer components.Close()

	scheduler, errSchedule := newScheduler(ctx, components)
	if errSchedule != nil {
		return errSchedule
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              net.JoinHostPort(serviceCfg.Host, strconv.Itoa(serviceCfg.Port)),
		Handler:           NewEngine(components),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("benefits service listening on %s (plan-source=%s, enrollment-sink=%s)", server.Addr, serviceCfg.PlanSource, serviceCfg.EnrollmentSink)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe, ok := <-errCh:
		if ok {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown http server: %w", errShutdown)
	}
	log.Info("benefits service stopped")
	return nil
}
