package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanConfig stores a base plan configuration document for one
// (corporate id, plan type, country) triple. An empty corporate id is the
// platform-wide default.
type PlanConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CorporateID string `gorm:"type:varchar(128);not null;default:'';uniqueIndex:idx_plan_configs_key,priority:1"` // Tenant slug or empty.
	PlanType    string `gorm:"type:varchar(16);not null;uniqueIndex:idx_plan_configs_key,priority:2"`             // GMC, GPA, ...
	CountryCode string `gorm:"type:varchar(8);not null;uniqueIndex:idx_plan_configs_key,priority:3"`              // IN, SG, ... or GLOBAL.

	Name     string         `gorm:"type:varchar(255);not null;default:''"` // Admin label.
	Document datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`      // Plan configuration document.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the document is served.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
