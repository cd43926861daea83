package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

func autoMigrate(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.Tenant{},
		&models.PlanConfig{},
		&models.PlanOverride{},
		&models.Enrollment{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errMigrate := autoMigrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errFlags := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tenants_compliance_flags
		ON tenants USING GIN (compliance_flags)
	`).Error; errFlags != nil {
		return fmt.Errorf("db: create compliance flags index: %w", errFlags)
	}
	if errEnabled := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_plan_configs_enabled
		ON plan_configs (plan_type, country_code)
		WHERE is_enabled
	`).Error; errEnabled != nil {
		return fmt.Errorf("db: create enabled plan configs index: %w", errEnabled)
	}
	if errEnrollments := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_enrollments_tenant_created
		ON enrollments (corporate_id, created_at DESC)
	`).Error; errEnrollments != nil {
		return fmt.Errorf("db: create enrollments index: %w", errEnrollments)
	}
	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errMigrate := autoMigrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errEnrollments := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_enrollments_tenant_created
		ON enrollments (corporate_id, created_at)
	`).Error; errEnrollments != nil {
		return fmt.Errorf("db: create enrollments index: %w", errEnrollments)
	}
	return nil
}

// EnsureTenant creates an active tenant with the given slug when none exists.
// It reports whether a row was created.
func EnsureTenant(conn *gorm.DB, slug, name, countryCode string) (bool, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if conn == nil || slug == "" {
		return false, nil
	}
	var existing models.Tenant
	errFind := conn.Where("slug = ?", slug).Take(&existing).Error
	if errFind == nil {
		return false, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("db: find tenant %s: %w", slug, errFind)
	}
	if strings.TrimSpace(name) == "" {
		name = slug
	}
	if strings.TrimSpace(countryCode) == "" {
		countryCode = "GLOBAL"
	}
	tenant := models.Tenant{
		Slug:        slug,
		Name:        name,
		CountryCode: strings.ToUpper(countryCode),
		Status:      models.TenantStatusActive,
	}
	if errCreate := conn.Create(&tenant).Error; errCreate != nil {
		return false, fmt.Errorf("db: create tenant %s: %w", slug, errCreate)
	}
	return true, nil
}
