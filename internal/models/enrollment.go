package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Enrollment is a submitted benefits selection.
type Enrollment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublicID    string `gorm:"type:varchar(64);not null;uniqueIndex"` // Identifier returned to callers.
	TenantID    uint64 `gorm:"not null;index"`                        // Owning tenant.
	CorporateID string `gorm:"type:varchar(128);not null;index"`      // Tenant slug at submission time.
	EmployeeID  string `gorm:"type:varchar(255);not null;index"`      // Identity provider subject.
	SessionID   string `gorm:"type:varchar(64);not null;uniqueIndex"` // Enrollment session, one submission each.
	PlanType    string `gorm:"type:varchar(16);not null"`             // Plan type enrolled in.
	CountryCode string `gorm:"type:varchar(8);not null"`              // Country of the configuration.

	Selection datatypes.JSON      `gorm:"type:jsonb;not null;default:'{}'"`      // Submitted selection.
	Summary   datatypes.JSON      `gorm:"type:jsonb;not null;default:'{}'"`      // Summary shown at submission.
	Premium   decimal.NullDecimal `gorm:"type:decimal(20,2)"`                    // Looked up premium, null when unmatched.
	Message   string              `gorm:"type:varchar(255);not null;default:''"` // Confirmation message.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Submission timestamp.
}
