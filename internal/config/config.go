package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/settings"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvJWTSecret       = "JWT_SECRET"
	EnvJWTExpiry       = "JWT_EXPIRY"
	EnvBackendBaseURL  = "BACKEND_BASE_URL"
	EnvGraphQLEndpoint = "GRAPHQL_ENDPOINT"
	EnvGraphQLToken    = "GRAPHQL_TOKEN"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvRootDomain      = "ROOT_DOMAIN"
	EnvDefaultTenant   = "DEFAULT_TENANT"
	EnvPort            = "PORT"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; existing variables are kept.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, errStat := os.Stat(p); errStat != nil {
			continue
		}
		if errLoad := godotenv.Load(p); errLoad != nil {
			log.WithError(errLoad).Warnf("config: load %s", p)
		}
	}
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig configures the optional Redis backend shared by the plan cache and the rate limiter.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	CacheTTL time.Duration `yaml:"cache-ttl"`
}

// TenancyConfig controls how a request host maps to a tenant.
type TenancyConfig struct {
	RootDomain    string `yaml:"root-domain"`
	DefaultTenant string `yaml:"default-tenant"`
}

// SessionConfig controls enrollment session lifetime.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Config is the full service configuration.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	BackendBaseURL  string        `yaml:"backend-base-url"`
	GraphQLEndpoint string        `yaml:"graphql-endpoint"`
	GraphQLToken    string        `yaml:"graphql-token"`
	PlanSource      string        `yaml:"plan-source"`
	EnrollmentSink  string        `yaml:"enrollment-sink"`
	FetchTimeout    time.Duration `yaml:"fetch-timeout"`
	RateLimit       int           `yaml:"rate-limit"`
	Tenancy         TenancyConfig `yaml:"tenancy"`
	JWT             JWTConfig     `yaml:"jwt"`
	Redis           RedisConfig   `yaml:"redis"`
	Session         SessionConfig `yaml:"session"`
}

// DSN returns the configured database DSN, preferring the flat key.
func (c Config) DSN() string {
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(c.Database.DSN)
}

// Load reads the YAML config file (a missing file is allowed), applies
// environment overrides and fills defaults.
func Load(configPath string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.PlanSource {
	case settings.PlanSourceDatabase, settings.PlanSourceRemote:
	default:
		return fmt.Errorf("config: invalid plan-source %q", c.PlanSource)
	}
	switch c.EnrollmentSink {
	case settings.EnrollmentSinkDatabase, settings.EnrollmentSinkGraphQL:
	default:
		return fmt.Errorf("config: invalid enrollment-sink %q", c.EnrollmentSink)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate-limit must be >= 0")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendBaseURL)); v != "" {
		cfg.BackendBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGraphQLEndpoint)); v != "" {
		cfg.GraphQLEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGraphQLToken)); v != "" {
		cfg.GraphQLToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRootDomain)); v != "" {
		cfg.Tenancy.RootDomain = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDefaultTenant)); v != "" {
		cfg.Tenancy.DefaultTenant = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if port, errParse := strconv.Atoi(v); errParse == nil {
			cfg.Port = port
		}
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = settings.DefaultPort
	}
	if strings.TrimSpace(cfg.BackendBaseURL) == "" {
		cfg.BackendBaseURL = settings.DefaultBackendBaseURL
	}
	cfg.BackendBaseURL = strings.TrimRight(cfg.BackendBaseURL, "/")
	if strings.TrimSpace(cfg.GraphQLEndpoint) == "" {
		cfg.GraphQLEndpoint = settings.DefaultGraphQLEndpoint
	}
	cfg.PlanSource = strings.ToLower(strings.TrimSpace(cfg.PlanSource))
	if cfg.PlanSource == "" {
		cfg.PlanSource = settings.PlanSourceDatabase
	}
	cfg.EnrollmentSink = strings.ToLower(strings.TrimSpace(cfg.EnrollmentSink))
	if cfg.EnrollmentSink == "" {
		cfg.EnrollmentSink = settings.EnrollmentSinkDatabase
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = settings.DefaultFetchTimeout
	}
	if strings.TrimSpace(cfg.Tenancy.RootDomain) == "" {
		cfg.Tenancy.RootDomain = settings.DefaultRootDomain
	}
	cfg.Tenancy.DefaultTenant = strings.ToLower(strings.TrimSpace(cfg.Tenancy.DefaultTenant))
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = settings.DefaultJWTExpiry
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = settings.DefaultRedisPrefix
	}
	if cfg.Redis.CacheTTL <= 0 {
		cfg.Redis.CacheTTL = settings.DefaultCacheTTL
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = settings.DefaultSessionTTL
	}
}

// LoadDatabaseDSN reads the database DSN from the environment or the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if dsn := cfg.DSN(); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadJWTConfig loads JWT settings from the YAML config file with env overrides.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	var cfg Config
	if data, errRead := os.ReadFile(configPath); errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			log.WithError(errUnmarshal).Warn("config: parse jwt section")
			cfg = Config{}
		}
	}
	applyEnv(&cfg)
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = settings.DefaultJWTExpiry
	}
	return cfg.JWT, nil
}
