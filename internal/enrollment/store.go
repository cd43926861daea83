package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StoreSubmitter persists enrollments in the database.
type StoreSubmitter struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewStoreSubmitter constructs a database-backed submitter.
func NewStoreSubmitter(db *gorm.DB) *StoreSubmitter {
	return &StoreSubmitter{db: db, nowFn: time.Now}
}

// Submit inserts one enrollment row per session. A second submission for the
// same session returns ErrAlreadySubmitted.
func (s *StoreSubmitter) Submit(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.db == nil {
		return Result{}, fmt.Errorf("enrollment: store submitter not configured")
	}
	selection, errSel := json.Marshal(req.Selection)
	if errSel != nil {
		return Result{}, fmt.Errorf("enrollment: encode selection: %w", errSel)
	}
	view, errView := json.Marshal(req.Summary)
	if errView != nil {
		return Result{}, fmt.Errorf("enrollment: encode summary: %w", errView)
	}
	var premium decimal.NullDecimal
	if req.Summary.Premium != nil {
		premium = decimal.NewNullDecimal(*req.Summary.Premium)
	}

	row := models.Enrollment{
		PublicID:    uuid.NewString(),
		TenantID:    req.TenantID,
		CorporateID: req.CorporateID,
		EmployeeID:  req.EmployeeID,
		SessionID:   req.SessionID,
		PlanType:    string(req.Key.PlanType),
		CountryCode: string(req.Key.CountryCode),
		Selection:   datatypes.JSON(selection),
		Summary:     datatypes.JSON(view),
		Premium:     premium,
		Message:     DefaultSuccessMessage,
		CreatedAt:   s.nowFn().UTC(),
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Enrollment{}).Where("session_id = ?", req.SessionID).Count(&count).Error; errCount != nil {
			return fmt.Errorf("enrollment: check session: %w", errCount)
		}
		if count > 0 {
			return ErrAlreadySubmitted
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("enrollment: create: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return Result{}, errTx
	}
	return Result{
		Kind:         KindSuccess,
		Message:      row.Message,
		EnrollmentID: row.PublicID,
		SubmittedAt:  row.CreatedAt,
	}, nil
}
