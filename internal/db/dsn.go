package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DSNInfo describes a database DSN without exposing the password.
type DSNInfo struct {
	Dialect     string `json:"dialect"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	User        string `json:"user,omitempty"`
	Database    string `json:"database,omitempty"`
	Path        string `json:"path,omitempty"`
	TLS         bool   `json:"tls"`
	PasswordSet bool   `json:"password_set"`
}

// String renders the DSN info for startup logs.
func (i DSNInfo) String() string {
	if i.Dialect == DialectSQLite {
		return fmt.Sprintf("sqlite path=%s", i.Path)
	}
	return fmt.Sprintf("postgres host=%s port=%d db=%s user=%s tls=%t", i.Host, i.Port, i.Database, i.User, i.TLS)
}

// DescribeDSN classifies a DSN as SQLite (file: prefix or *.db path) or
// Postgres. Postgres DSNs, URL or keyword/value form, are validated with pgx.
func DescribeDSN(dsn string) (DSNInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return DSNInfo{}, fmt.Errorf("db: empty dsn")
	}

	if isSQLiteDSN(trimmed) {
		pathPart := trimmed
		if strings.HasPrefix(strings.ToLower(pathPart), "file:") {
			pathPart = pathPart[len("file:"):]
		}
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return DSNInfo{Dialect: DialectSQLite, Path: strings.TrimSpace(pathPart)}, nil
	}

	if u, errParse := url.Parse(trimmed); errParse == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "postgres", "postgresql":
		default:
			return DSNInfo{}, fmt.Errorf("db: unsupported dsn scheme %q", u.Scheme)
		}
	}

	cfg, errConfig := pgx.ParseConfig(trimmed)
	if errConfig != nil {
		return DSNInfo{}, fmt.Errorf("db: parse postgres dsn: %w", errConfig)
	}
	return DSNInfo{
		Dialect:     DialectPostgres,
		Host:        cfg.Host,
		Port:        int(cfg.Port),
		User:        cfg.User,
		Database:    cfg.Database,
		TLS:         cfg.TLSConfig != nil,
		PasswordSet: cfg.Password != "",
	}, nil
}

func isSQLiteDSN(dsn string) bool {
	lowered := strings.ToLower(dsn)
	if strings.HasPrefix(lowered, "file:") {
		return true
	}
	pathPart, _, _ := strings.Cut(lowered, "?")
	return strings.HasSuffix(pathPart, ".db") || strings.HasSuffix(pathPart, ".sqlite")
}
