package models

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant status values.
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// Tenant is a corporate customer served under its own subdomain.
type Tenant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug        string `gorm:"type:varchar(128);not null;uniqueIndex"`    // Corporate id, also the subdomain label.
	Name        string `gorm:"type:varchar(255);not null"`                // Display name.
	CountryCode string `gorm:"type:varchar(8);not null;default:'GLOBAL'"` // Home country for defaulting plan lookups.

	ComplianceFlags datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Compliance regimes (GDPR, HIPAA, ...).
	ConfigJSON      datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Free-form tenant settings.

	Status    string `gorm:"type:varchar(16);not null;default:'active';index"` // active or inactive.
	RateLimit int    `gorm:"not null;default:0"`                               // Requests per second per employee, 0 uses the default.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
