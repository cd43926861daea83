package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/security"
	internalsettings "github.com/corpbenefits/benefits-platform/internal/settings"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrConfigExists reports that bootstrap would overwrite a config file.
var ErrConfigExists = errors.New("config file already exists")

// BootstrapRequest contains parameters for first-time setup.
type BootstrapRequest struct {
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	Port             int
	RootDomain       string
	DefaultTenant    string
	TenantName       string
	CountryCode      string
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "benefits.db"

// BuildDSN builds a database DSN from the bootstrap request.
func BuildDSN(req BootstrapRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	case "sqlite":
		return buildSQLiteDSN(req.DatabasePath), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", req.DatabaseType)
	}
}

// buildSQLiteDSN constructs a SQLite DSN with default parameters.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
		"_synchronous=NORMAL",
	}, "&")
}

// validateBootstrapRequest normalizes and validates bootstrap input.
func validateBootstrapRequest(req *BootstrapRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "postgres"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("database name is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}

	if req.Port <= 0 {
		req.Port = internalsettings.DefaultPort
	}
	req.DefaultTenant = strings.ToLower(strings.TrimSpace(req.DefaultTenant))
	req.TenantName = strings.TrimSpace(req.TenantName)
	if req.TenantName == "" {
		req.TenantName = req.DefaultTenant
	}
	country := planconfig.CountryGlobal
	if strings.TrimSpace(req.CountryCode) != "" {
		parsed, errCountry := planconfig.ParseCountryCode(req.CountryCode)
		if errCountry != nil {
			return errCountry
		}
		country = parsed
	}
	req.CountryCode = string(country)
	return nil
}

// checkDatabaseConnection validates that the DSN can connect and ping.
func checkDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.Ping()
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string     `yaml:"host"`
	Port        int        `yaml:"port"`
	DatabaseDSN string     `yaml:"database-dsn"`
	Debug       bool       `yaml:"debug"`
	JWT         jwtCfg     `yaml:"jwt"`
	Tenancy     tenancyCfg `yaml:"tenancy"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type tenancyCfg struct {
	RootDomain    string `yaml:"root-domain,omitempty"`
	DefaultTenant string `yaml:"default-tenant,omitempty"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, req BootstrapRequest) error {
	cfg := configFile{
		Port:        req.Port,
		DatabaseDSN: dsn,
		JWT: jwtCfg{
			Secret: generateJWTSecret(),
			Expiry: internalsettings.DefaultJWTExpiry.String(),
		},
		Tenancy: tenancyCfg{
			RootDomain:    strings.TrimSpace(req.RootDomain),
			DefaultTenant: req.DefaultTenant,
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// Bootstrap writes a config file, migrates the database and seeds the
// default tenant. It refuses to overwrite an existing config file.
func Bootstrap(ctx context.Context, configPath string, req BootstrapRequest) error {
	if ConfigExists(configPath) {
		return fmt.Errorf("%w: %s", ErrConfigExists, configPath)
	}
	if errValidate := validateBootstrapRequest(&req); errValidate != nil {
		return errValidate
	}
	dsn, errBuild := BuildDSN(req)
	if errBuild != nil {
		return errBuild
	}
	if errCheck := checkDatabaseConnection(dsn); errCheck != nil {
		return errCheck
	}

	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("close database failed")
		}
	}()
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	if req.DefaultTenant != "" {
		if _, errEnsure := db.EnsureTenant(conn, req.DefaultTenant, req.TenantName, req.CountryCode); errEnsure != nil {
			return fmt.Errorf("seed default tenant: %w", errEnsure)
		}
	}

	if errWrite := WriteConfigFile(configPath, dsn, req); errWrite != nil {
		return errWrite
	}
	log.Infof("wrote config to %s", configPath)
	return nil
}
