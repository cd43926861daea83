package form

import (
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
)

// PremiumMatrixComponent displays the premium table and highlights the row
// matching the selection's age band and family size.
type PremiumMatrixComponent struct{}

func (PremiumMatrixComponent) Name() string { return "premium_matrix" }

func (PremiumMatrixComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.PremiumMatrix != nil
}

func (c PremiumMatrixComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindTable, "Premiums", cfg, errs)
	field.ReadOnly = true

	ageBand := ""
	if sel != nil {
		ageBand = sel.AgeBand
	}
	size := FamilySize(cfg, sel)
	highlighted := false
	for _, row := range cfg.Premiums() {
		match := !highlighted && ageBand != "" && row.AgeBand == ageBand && row.FamilySize == size
		if match {
			highlighted = true
		}
		field.Rows = append(field.Rows, MatrixRow{
			AgeBand:     row.AgeBand,
			FamilySize:  row.FamilySize,
			Premium:     row.Premium,
			Highlighted: match,
		})
	}
	return field
}

func (c PremiumMatrixComponent) Apply(*planconfig.PlanConfiguration, *Selection, Change) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, c.Name())
}
