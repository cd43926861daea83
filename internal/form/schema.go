package form

import (
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
)

// NoConfigurationMessage is shown when no configuration is available.
const NoConfigurationMessage = "No configuration found"

// Schema is the full rendered form.
type Schema struct {
	Empty    bool                `json:"empty"`
	Message  string              `json:"message,omitempty"`
	Branding planconfig.Branding `json:"branding"`
	Fields   []Field             `json:"fields"`
}

var components = []Component{
	FamilyComponent{},
	SumInsuredComponent{},
	PremiumMatrixComponent{},
	RidersComponent{},
	WalletComponent{},
	PaymentComponent{},
}

// Components returns the components in render order.
func Components() []Component {
	return append([]Component(nil), components...)
}

// Lookup returns the component with the given name.
func Lookup(name string) (Component, bool) {
	for _, c := range components {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Render renders every component whose section is present in cfg.
func Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Schema {
	if cfg == nil {
		return Schema{Empty: true, Message: NoConfigurationMessage, Fields: []Field{}}
	}
	schema := Schema{Branding: cfg.BrandingHints(), Fields: make([]Field, 0, len(components))}
	for _, c := range components {
		if c.Present(cfg) {
			schema.Fields = append(schema.Fields, c.Render(cfg, sel, errs))
		}
	}
	return schema
}

// ApplyChange routes change to its component.
func ApplyChange(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	if cfg == nil {
		return ErrNoConfiguration
	}
	if sel == nil {
		return fmt.Errorf("form: nil selection")
	}
	c, ok := Lookup(change.Component)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownComponent, change.Component)
	}
	if !c.Present(cfg) {
		return fmt.Errorf("%w: %s is not part of this plan", ErrInvalidChange, change.Component)
	}
	return c.Apply(cfg, sel, change)
}
