package form

import (
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

// SumInsuredComponent picks one sum insured from the configured options.
type SumInsuredComponent struct{}

func (SumInsuredComponent) Name() string { return "sum_insured" }

func (SumInsuredComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.SumInsuredLogic != nil
}

func (c SumInsuredComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindSelect, "Sum insured", cfg, errs)
	for _, option := range cfg.SumInsuredOptions() {
		field.Options = append(field.Options, Option{
			Value:   option.String(),
			Label:   option.StringFixed(0),
			Checked: sel != nil && sel.SumInsured != nil && sel.SumInsured.Equal(option),
		})
	}
	if sel != nil && sel.SumInsured != nil {
		field.Value = *sel.SumInsured
	}
	return field
}

// Apply replaces the selected sum insured. Values outside the options are rejected.
func (c SumInsuredComponent) Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	var value decimal.Decimal
	if err := decodeValue(change, &value); err != nil {
		return err
	}
	for _, option := range cfg.SumInsuredOptions() {
		if option.Equal(value) {
			v := option
			sel.SumInsured = &v
			return nil
		}
	}
	return fmt.Errorf("%w: sum_insured: %s is not an offered option", ErrInvalidChange, value)
}
