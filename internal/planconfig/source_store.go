package planconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/models"
	"gorm.io/gorm"
)

// StoreSource reads plan configurations and overrides from the database.
type StoreSource struct {
	db *gorm.DB
}

// NewStoreSource constructs a database-backed source.
func NewStoreSource(db *gorm.DB) *StoreSource {
	return &StoreSource{db: db}
}

func (s *StoreSource) Name() string { return "database" }

type lookupStep struct {
	corporateID string
	countryCode CountryCode
}

// lookupChain lists the base document candidates from most to least specific.
func lookupChain(key Key) []lookupStep {
	candidates := []lookupStep{
		{key.CorporateID, key.CountryCode},
		{key.CorporateID, CountryGlobal},
		{"", key.CountryCode},
		{"", CountryGlobal},
	}
	seen := make(map[lookupStep]struct{}, len(candidates))
	out := make([]lookupStep, 0, len(candidates))
	for _, step := range candidates {
		if _, ok := seen[step]; ok {
			continue
		}
		seen[step] = struct{}{}
		out = append(out, step)
	}
	return out
}

// Fetch returns the most specific enabled base document and every enabled
// country or tenant override for the key.
func (s *StoreSource) Fetch(ctx context.Context, key Key) (*Bundle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("planconfig: store source not configured")
	}
	conn := s.db.WithContext(ctx)

	var base *PlanConfiguration
	for _, step := range lookupChain(key) {
		var row models.PlanConfig
		errFind := conn.
			Where("corporate_id = ? AND plan_type = ? AND country_code = ? AND is_enabled = ?",
				step.corporateID, string(key.PlanType), string(step.countryCode), true).
			Order("id DESC").
			Take(&row).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			continue
		}
		if errFind != nil {
			return nil, fmt.Errorf("planconfig: query plan config: %w", errFind)
		}
		doc, errParse := ParseDocument(row.Document)
		if errParse != nil {
			return nil, fmt.Errorf("planconfig: plan config %d: %w", row.ID, errParse)
		}
		if doc == nil {
			doc = &PlanConfiguration{}
		}
		base = doc
		break
	}
	if base == nil {
		return nil, nil
	}

	var rows []models.PlanOverride
	errOverrides := conn.
		Where("plan_type = ? AND country_code = ? AND is_enabled = ?", string(key.PlanType), string(key.CountryCode), true).
		Where("corporate_id = ? OR corporate_id = ?", "", key.CorporateID).
		Order("id ASC").
		Find(&rows).Error
	if errOverrides != nil {
		return nil, fmt.Errorf("planconfig: query overrides: %w", errOverrides)
	}

	overrides := make([]OverrideDocument, 0, len(rows))
	for _, row := range rows {
		patch, errPatch := ParsePatch(row.Patch)
		if errPatch != nil {
			return nil, fmt.Errorf("planconfig: override %d: %w", row.ID, errPatch)
		}
		scope := ScopeCountry
		if row.CorporateID != "" {
			scope = ScopeTenant
		}
		overrides = append(overrides, OverrideDocument{
			Scope:       scope,
			CountryCode: key.CountryCode,
			CorporateID: row.CorporateID,
			Patch:       patch,
		})
	}

	return &Bundle{Key: key, Base: base, Overrides: overrides}, nil
}
