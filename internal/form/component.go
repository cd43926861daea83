// Package form renders plan configurations as form schemas and applies
// employee changes to a Selection. Components are stateless.
package form

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidChange reports a change value the component does not accept.
	ErrInvalidChange = errors.New("invalid change")
	// ErrReadOnly reports a change sent to a display-only component.
	ErrReadOnly = errors.New("component is read-only")
	// ErrUnknownComponent reports a change addressed to no component.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrNoConfiguration reports a change made without a configuration.
	ErrNoConfiguration = errors.New("no configuration loaded")
)

// Kind tells the client which control to draw.
type Kind string

const (
	KindToggleGroup Kind = "toggle_group"
	KindSelect      Kind = "select"
	KindTable       Kind = "table"
	KindRiderList   Kind = "rider_list"
	KindSlider      Kind = "slider"
	KindRadio       Kind = "radio"
)

// Option is one choice of a toggle group, select or radio control.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Checked  bool   `json:"checked"`
	Disabled bool   `json:"disabled,omitempty"`
}

// MatrixRow is one display row of the premium matrix.
type MatrixRow struct {
	AgeBand     string          `json:"age_band"`
	FamilySize  int             `json:"family_size"`
	Premium     decimal.Decimal `json:"premium"`
	Highlighted bool            `json:"highlighted"`
}

// RiderField is one rider entry with its toggle and limit input.
type RiderField struct {
	Name     string           `json:"name"`
	Enabled  bool             `json:"enabled"`
	Limit    *decimal.Decimal `json:"limit,omitempty"`
	MaxLimit *decimal.Decimal `json:"max_limit,omitempty"`
}

// Field is the rendered view of one component.
type Field struct {
	Name     string              `json:"name"`
	Kind     Kind                `json:"kind"`
	Label    string              `json:"label"`
	Options  []Option            `json:"options,omitempty"`
	Rows     []MatrixRow         `json:"rows,omitempty"`
	Riders   []RiderField        `json:"riders,omitempty"`
	Value    any                 `json:"value,omitempty"`
	Min      *decimal.Decimal    `json:"min,omitempty"`
	Max      *decimal.Decimal    `json:"max,omitempty"`
	Split    *WalletSplit        `json:"split,omitempty"`
	ReadOnly bool                `json:"read_only,omitempty"`
	Branding planconfig.Branding `json:"branding"`
	Errors   []string            `json:"errors,omitempty"`
}

// ValidationErrors maps a component name to messages produced elsewhere.
type ValidationErrors map[string][]string

// Change is one edit addressed to a component. Key names the member or rider
// for components with several entries.
type Change struct {
	Component string          `json:"component" binding:"required"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// Component renders one section of a plan configuration and applies edits
// to the part of the Selection it owns.
type Component interface {
	Name() string
	Present(cfg *planconfig.PlanConfiguration) bool
	Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field
	Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error
}

func newField(name string, kind Kind, label string, cfg *planconfig.PlanConfiguration, errs ValidationErrors) Field {
	return Field{
		Name:     name,
		Kind:     kind,
		Label:    label,
		Branding: cfg.BrandingHints(),
		Errors:   append([]string(nil), errs[name]...),
	}
}

func decodeValue(change Change, out any) error {
	if len(change.Value) == 0 {
		return fmt.Errorf("%w: %s: missing value", ErrInvalidChange, change.Component)
	}
	if err := json.Unmarshal(change.Value, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidChange, change.Component, err)
	}
	return nil
}
