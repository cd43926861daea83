package form

import (
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

// RidersComponent toggles each rider independently and holds a limit for
// enabled riders.
type RidersComponent struct{}

func (RidersComponent) Name() string { return "riders" }

func (RidersComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.Riders != nil
}

func (c RidersComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindRiderList, "Riders", cfg, errs)
	for _, rider := range cfg.Riders {
		entry := RiderField{Name: rider.Name, MaxLimit: cloneDecimal(rider.Limit)}
		if chosen, ok := sel.Rider(rider.Name); ok && chosen.Enabled {
			entry.Enabled = true
			if chosen.Limit != nil {
				limit := clampRiderLimit(*chosen.Limit, rider.Limit)
				entry.Limit = &limit
			}
		}
		field.Riders = append(field.Riders, entry)
	}
	return field
}

type riderChange struct {
	Enabled *bool            `json:"enabled"`
	Limit   *decimal.Decimal `json:"limit"`
}

// Apply updates only the rider named by change.Key. The value is
// {"enabled": bool, "limit": number}; either field may be omitted.
func (c RidersComponent) Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	var configured *planconfig.Rider
	for i := range cfg.Riders {
		if cfg.Riders[i].Name == change.Key {
			configured = &cfg.Riders[i]
			break
		}
	}
	if configured == nil {
		return fmt.Errorf("%w: riders: unknown rider %q", ErrInvalidChange, change.Key)
	}
	var update riderChange
	if err := decodeValue(change, &update); err != nil {
		return err
	}
	if update.Enabled == nil && update.Limit == nil {
		return fmt.Errorf("%w: riders: empty change", ErrInvalidChange)
	}

	idx := -1
	for i := range sel.Riders {
		if sel.Riders[i].Name == configured.Name {
			idx = i
			break
		}
	}
	if idx < 0 {
		sel.Riders = append(sel.Riders, RiderSelection{Name: configured.Name})
		idx = len(sel.Riders) - 1
	}
	entry := &sel.Riders[idx]

	if update.Enabled != nil {
		entry.Enabled = *update.Enabled
		if !entry.Enabled {
			entry.Limit = nil
		}
	}
	if update.Limit != nil {
		if !entry.Enabled {
			return fmt.Errorf("%w: riders: %s is not enabled", ErrInvalidChange, configured.Name)
		}
		limit := clampRiderLimit(*update.Limit, configured.Limit)
		entry.Limit = &limit
	}
	return nil
}

func clampRiderLimit(value decimal.Decimal, maximum *decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		value = decimal.Zero
	}
	if maximum != nil && value.GreaterThan(*maximum) {
		value = *maximum
	}
	return value
}
