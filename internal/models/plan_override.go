package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanOverride stores a partial configuration applied on top of a base
// document. Rows with an empty corporate id are country overrides, the rest
// are tenant overrides.
type PlanOverride struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CorporateID string `gorm:"type:varchar(128);not null;default:'';index:idx_plan_overrides_lookup,priority:3"` // Tenant slug or empty.
	PlanType    string `gorm:"type:varchar(16);not null;index:idx_plan_overrides_lookup,priority:1"`             // Plan type the patch targets.
	CountryCode string `gorm:"type:varchar(8);not null;index:idx_plan_overrides_lookup,priority:2"`              // Country the patch applies to.

	Description string         `gorm:"type:text"`                        // Admin note.
	Patch       datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Partial configuration document.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the patch is applied.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
