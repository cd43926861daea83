package form

import (
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

// RiderSelection is the employee's choice for one rider.
type RiderSelection struct {
	Name    string           `json:"name"`
	Enabled bool             `json:"enabled"`
	Limit   *decimal.Decimal `json:"limit,omitempty"`
}

// Selection holds the employee's in-progress choices. Each field is written
// by exactly one component. AgeBand and FamilySize are supplied by the caller
// and only feed the premium lookup.
type Selection struct {
	Family     map[string]bool  `json:"family"`
	SumInsured *decimal.Decimal `json:"sumInsured,omitempty"`
	Riders     []RiderSelection `json:"riders"`
	Wallet     *decimal.Decimal `json:"wallet,omitempty"`
	Payment    string           `json:"payment,omitempty"`
	AgeBand    string           `json:"ageBand,omitempty"`
	FamilySize int              `json:"familySize,omitempty"`
}

// NewSelection returns an empty selection for cfg with mandatory members
// already checked.
func NewSelection(cfg *planconfig.PlanConfiguration) *Selection {
	sel := &Selection{Family: map[string]bool{}, Riders: []RiderSelection{}}
	for _, member := range cfg.Members() {
		if member.Mandatory {
			sel.Family[member.Relation] = true
		}
	}
	return sel
}

// Clone returns a deep copy.
func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	out := &Selection{
		Payment:    s.Payment,
		AgeBand:    s.AgeBand,
		FamilySize: s.FamilySize,
		SumInsured: cloneDecimal(s.SumInsured),
		Wallet:     cloneDecimal(s.Wallet),
	}
	if s.Family != nil {
		out.Family = make(map[string]bool, len(s.Family))
		for k, v := range s.Family {
			out.Family[k] = v
		}
	}
	if s.Riders != nil {
		out.Riders = make([]RiderSelection, len(s.Riders))
		for i, r := range s.Riders {
			out.Riders[i] = RiderSelection{Name: r.Name, Enabled: r.Enabled, Limit: cloneDecimal(r.Limit)}
		}
	}
	return out
}

// Rider returns the selection entry for name.
func (s *Selection) Rider(name string) (RiderSelection, bool) {
	if s == nil {
		return RiderSelection{}, false
	}
	for _, r := range s.Riders {
		if r.Name == name {
			return r, true
		}
	}
	return RiderSelection{}, false
}

// EnabledRiders returns the enabled riders the configuration offers, in
// configuration order, with limits clamped to each rider's configured limit.
// Selections naming riders the plan does not offer are dropped.
func EnabledRiders(cfg *planconfig.PlanConfiguration, sel *Selection) []RiderSelection {
	out := []RiderSelection{}
	if cfg == nil || sel == nil {
		return out
	}
	for _, rider := range cfg.Riders {
		chosen, ok := sel.Rider(rider.Name)
		if !ok || !chosen.Enabled {
			continue
		}
		entry := RiderSelection{Name: rider.Name, Enabled: true}
		if chosen.Limit != nil {
			limit := clampRiderLimit(*chosen.Limit, rider.Limit)
			entry.Limit = &limit
		}
		out = append(out, entry)
	}
	return out
}

// SelectedMembers returns the covered relations in configuration order.
// Mandatory members are always covered.
func SelectedMembers(cfg *planconfig.PlanConfiguration, sel *Selection) []string {
	members := cfg.Members()
	out := make([]string, 0, len(members))
	for _, member := range members {
		if member.Mandatory || (sel != nil && sel.Family[member.Relation]) {
			out = append(out, member.Relation)
		}
	}
	return out
}

// FamilySize returns the caller-supplied family size, or the number of
// covered members when none was supplied.
func FamilySize(cfg *planconfig.PlanConfiguration, sel *Selection) int {
	if sel != nil && sel.FamilySize > 0 {
		return sel.FamilySize
	}
	return len(SelectedMembers(cfg, sel))
}

func cloneDecimal(in *decimal.Decimal) *decimal.Decimal {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
