// Package summary projects a configuration and a selection into the
// enrollment summary, including the premium lookup.
package summary

import (
	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

// View is the read-only summary of a selection.
type View struct {
	Family       []string              `json:"family"`
	FamilySize   int                   `json:"family_size"`
	AgeBand      string                `json:"age_band,omitempty"`
	SumInsured   *decimal.Decimal      `json:"sum_insured,omitempty"`
	Riders       []form.RiderSelection `json:"riders"`
	Wallet       *decimal.Decimal      `json:"wallet,omitempty"`
	WalletSplit  *form.WalletSplit     `json:"wallet_split,omitempty"`
	Payment      string                `json:"payment,omitempty"`
	Premium      *decimal.Decimal      `json:"premium,omitempty"`
	PremiumFound bool                  `json:"premium_found"`
}

// Summarize builds the summary. A missing premium row leaves Premium nil and
// PremiumFound false. The age band is taken as supplied.
func Summarize(cfg *planconfig.PlanConfiguration, sel *form.Selection) View {
	view := View{
		Family:     form.SelectedMembers(cfg, sel),
		FamilySize: form.FamilySize(cfg, sel),
		Riders:     form.EnabledRiders(cfg, sel),
	}
	if sel == nil {
		return view
	}

	view.AgeBand = sel.AgeBand
	view.Payment = sel.Payment
	if sel.SumInsured != nil {
		v := *sel.SumInsured
		view.SumInsured = &v
	}
	if sel.Wallet != nil && cfg != nil {
		amount := form.ClampWallet(cfg, *sel.Wallet)
		split := form.SplitWallet(cfg, amount)
		view.Wallet = &amount
		view.WalletSplit = &split
	}

	if row, ok := LookupPremium(cfg, view.AgeBand, view.FamilySize); ok {
		premium := row.Premium
		view.Premium = &premium
		view.PremiumFound = true
	}
	return view
}

// LookupPremium finds the first premium row for ageBand and familySize.
func LookupPremium(cfg *planconfig.PlanConfiguration, ageBand string, familySize int) (planconfig.PremiumRow, bool) {
	if cfg == nil || ageBand == "" {
		return planconfig.PremiumRow{}, false
	}
	return cfg.PremiumMatrix.Lookup(ageBand, familySize)
}
