package planconfig

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OverrideScope orders override application: country before tenant.
type OverrideScope string

const (
	ScopeCountry OverrideScope = "country"
	ScopeTenant  OverrideScope = "tenant"
)

func (s OverrideScope) rank() int {
	if s == ScopeTenant {
		return 1
	}
	return 0
}

// OverrideDocument is a partial configuration for one country, optionally
// bound to a tenant.
type OverrideDocument struct {
	Scope       OverrideScope `json:"scope"`
	CountryCode CountryCode   `json:"country_code"`
	CorporateID string        `json:"corporate_id,omitempty"`
	Patch       Patch         `json:"patch"`
}

// Patch mirrors PlanConfiguration with every field optional. A present field
// replaces the target field entirely.
type Patch struct {
	FamilyDefinition      *FamilyDefinitionPatch      `json:"family_definition,omitempty"`
	SumInsuredLogic       *SumInsuredLogicPatch       `json:"sum_insured_logic,omitempty"`
	PremiumMatrix         *PremiumMatrixPatch         `json:"premium_matrix,omitempty"`
	Riders                *[]Rider                    `json:"riders,omitempty"`
	WalletFlexIntegration *WalletFlexIntegrationPatch `json:"wallet_flex_integration,omitempty"`
	PaymentOptions        *PaymentOptionsPatch        `json:"payment_options,omitempty"`
	Branding              *BrandingPatch              `json:"branding,omitempty"`
}

type FamilyDefinitionPatch struct {
	Members *[]FamilyMember `json:"members,omitempty"`
}

type SumInsuredLogicPatch struct {
	Options *[]decimal.Decimal `json:"options,omitempty"`
}

type PremiumMatrixPatch struct {
	Premiums *[]PremiumRow `json:"premiums,omitempty"`
}

type WalletFlexIntegrationPatch struct {
	MinContribution *decimal.Decimal `json:"min_contribution,omitempty"`
	MaxContribution *decimal.Decimal `json:"max_contribution,omitempty"`
}

type PaymentOptionsPatch struct {
	Methods *[]string `json:"methods,omitempty"`
}

type BrandingPatch struct {
	Font            *string `json:"font,omitempty"`
	BackgroundColor *string `json:"background_color,omitempty"`
	TextColor       *string `json:"text_color,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.FamilyDefinition == nil && p.SumInsuredLogic == nil && p.PremiumMatrix == nil &&
		p.Riders == nil && p.WalletFlexIntegration == nil && p.PaymentOptions == nil && p.Branding == nil
}

// Resolve applies the overrides for countryCode on top of a copy of base.
// Country overrides apply before tenant overrides; within a scope the given
// order holds and the last write wins. Neither base nor overrides are
// modified, and a nil base resolves to nil.
func Resolve(base *PlanConfiguration, countryCode CountryCode, overrides ...OverrideDocument) *PlanConfiguration {
	if base == nil {
		return nil
	}
	out := base.Clone()
	for _, doc := range applicable(countryCode, overrides) {
		doc.Patch.applyTo(out)
	}
	return out
}

func applicable(countryCode CountryCode, overrides []OverrideDocument) []OverrideDocument {
	matched := make([]OverrideDocument, 0, len(overrides))
	for _, doc := range overrides {
		if doc.CountryCode == countryCode {
			matched = append(matched, doc)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Scope.rank() < matched[j].Scope.rank()
	})
	return matched
}

func (p Patch) applyTo(cfg *PlanConfiguration) {
	if p.FamilyDefinition != nil {
		if cfg.FamilyDefinition == nil {
			cfg.FamilyDefinition = &FamilyDefinition{}
		}
		if p.FamilyDefinition.Members != nil {
			cfg.FamilyDefinition.Members = cloneSlice(*p.FamilyDefinition.Members)
		}
	}
	if p.SumInsuredLogic != nil {
		if cfg.SumInsuredLogic == nil {
			cfg.SumInsuredLogic = &SumInsuredLogic{}
		}
		if p.SumInsuredLogic.Options != nil {
			cfg.SumInsuredLogic.Options = cloneSlice(*p.SumInsuredLogic.Options)
		}
	}
	if p.PremiumMatrix != nil {
		if cfg.PremiumMatrix == nil {
			cfg.PremiumMatrix = &PremiumMatrix{}
		}
		if p.PremiumMatrix.Premiums != nil {
			cfg.PremiumMatrix.Premiums = cloneSlice(*p.PremiumMatrix.Premiums)
		}
	}
	if p.Riders != nil {
		cfg.Riders = cloneRiders(*p.Riders)
		if cfg.Riders == nil {
			cfg.Riders = []Rider{}
		}
	}
	if p.WalletFlexIntegration != nil {
		if cfg.WalletFlexIntegration == nil {
			cfg.WalletFlexIntegration = &WalletFlexIntegration{}
		}
		if p.WalletFlexIntegration.MinContribution != nil {
			cfg.WalletFlexIntegration.MinContribution = cloneDecimal(p.WalletFlexIntegration.MinContribution)
		}
		if p.WalletFlexIntegration.MaxContribution != nil {
			cfg.WalletFlexIntegration.MaxContribution = cloneDecimal(p.WalletFlexIntegration.MaxContribution)
		}
	}
	if p.PaymentOptions != nil {
		if cfg.PaymentOptions == nil {
			cfg.PaymentOptions = &PaymentOptions{}
		}
		if p.PaymentOptions.Methods != nil {
			cfg.PaymentOptions.Methods = cloneSlice(*p.PaymentOptions.Methods)
		}
	}
	if p.Branding != nil {
		if cfg.Branding == nil {
			cfg.Branding = &Branding{}
		}
		setString(&cfg.Branding.Font, p.Branding.Font)
		setString(&cfg.Branding.BackgroundColor, p.Branding.BackgroundColor)
		setString(&cfg.Branding.TextColor, p.Branding.TextColor)
		setString(&cfg.Branding.LogoURL, p.Branding.LogoURL)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
