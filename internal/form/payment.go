package form

import (
	"fmt"
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
)

// PaymentComponent picks one payment method.
type PaymentComponent struct{}

func (PaymentComponent) Name() string { return "payment" }

func (PaymentComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.PaymentOptions != nil
}

func (c PaymentComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindRadio, "Payment method", cfg, errs)
	current := ""
	if sel != nil {
		current = sel.Payment
	}
	for _, method := range cfg.PaymentMethods() {
		field.Options = append(field.Options, Option{
			Value:   method,
			Label:   methodLabel(method),
			Checked: method == current,
		})
	}
	if current != "" {
		field.Value = current
	}
	return field
}

func (c PaymentComponent) Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	var method string
	if err := decodeValue(change, &method); err != nil {
		return err
	}
	for _, allowed := range cfg.PaymentMethods() {
		if allowed == method {
			sel.Payment = method
			return nil
		}
	}
	return fmt.Errorf("%w: payment: %q is not offered", ErrInvalidChange, method)
}

func methodLabel(method string) string {
	return relationLabel(strings.ToLower(method))
}
