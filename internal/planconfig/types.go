// Package planconfig models benefit plan configuration documents, resolves
// country and tenant overrides into an effective configuration, and loads
// configurations from the store or the external configuration service.
package planconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers in plan documents and API payloads.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	// ErrInvalidPlanType reports a plan type outside the supported set.
	ErrInvalidPlanType = errors.New("invalid plan type")
	// ErrInvalidCountryCode reports a country code outside the supported set.
	ErrInvalidCountryCode = errors.New("invalid country code")
)

// PlanType identifies a benefit product family.
type PlanType string

// Supported plan types.
const (
	PlanTypeGMC    PlanType = "GMC"
	PlanTypeGPA    PlanType = "GPA"
	PlanTypeGTL    PlanType = "GTL"
	PlanTypeFlex   PlanType = "Flex"
	PlanTypeWallet PlanType = "Wallet"
	PlanTypeCustom PlanType = "Custom"
)

var planTypes = []PlanType{PlanTypeGMC, PlanTypeGPA, PlanTypeGTL, PlanTypeFlex, PlanTypeWallet, PlanTypeCustom}

// PlanTypes returns the supported plan types in display order.
func PlanTypes() []PlanType {
	return append([]PlanType(nil), planTypes...)
}

// ParsePlanType matches raw case-insensitively and returns the canonical value.
func ParsePlanType(raw string) (PlanType, error) {
	trimmed := strings.TrimSpace(raw)
	for _, pt := range planTypes {
		if strings.EqualFold(string(pt), trimmed) {
			return pt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlanType, raw)
}

// CountryCode identifies the jurisdiction a configuration applies to.
type CountryCode string

// Supported country codes. CountryGlobal applies everywhere.
const (
	CountryIN     CountryCode = "IN"
	CountrySG     CountryCode = "SG"
	CountryAE     CountryCode = "AE"
	CountryUS     CountryCode = "US"
	CountryGlobal CountryCode = "GLOBAL"
)

var countryCodes = []CountryCode{CountryIN, CountrySG, CountryAE, CountryUS, CountryGlobal}

// CountryCodes returns the supported country codes.
func CountryCodes() []CountryCode {
	return append([]CountryCode(nil), countryCodes...)
}

// ParseCountryCode matches raw case-insensitively and returns the canonical value.
func ParseCountryCode(raw string) (CountryCode, error) {
	trimmed := strings.TrimSpace(raw)
	for _, cc := range countryCodes {
		if strings.EqualFold(string(cc), trimmed) {
			return cc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCountryCode, raw)
}

// Key addresses one plan configuration. An empty CorporateID selects the
// platform default.
type Key struct {
	PlanType    PlanType    `json:"plan_type"`
	CorporateID string      `json:"corporate_id"`
	CountryCode CountryCode `json:"country_code"`
}

// NewKey parses and normalizes the three key parts.
func NewKey(planType, corporateID, countryCode string) (Key, error) {
	pt, errPlan := ParsePlanType(planType)
	if errPlan != nil {
		return Key{}, errPlan
	}
	cc, errCountry := ParseCountryCode(countryCode)
	if errCountry != nil {
		return Key{}, errCountry
	}
	return Key{PlanType: pt, CorporateID: strings.ToLower(strings.TrimSpace(corporateID)), CountryCode: cc}, nil
}

// Validate reports whether the plan type and country are supported.
func (k Key) Validate() error {
	if _, err := ParsePlanType(string(k.PlanType)); err != nil {
		return err
	}
	if _, err := ParseCountryCode(string(k.CountryCode)); err != nil {
		return err
	}
	return nil
}

func (k Key) String() string {
	corp := k.CorporateID
	if corp == "" {
		corp = "-"
	}
	return fmt.Sprintf("%s/%s/%s", k.PlanType, corp, k.CountryCode)
}

// FamilyMember is one relation that can be covered.
type FamilyMember struct {
	Relation  string `json:"relation"`
	Mandatory bool   `json:"mandatory"`
}

// FamilyDefinition lists the coverable relations.
type FamilyDefinition struct {
	Members []FamilyMember `json:"members"`
}

// SumInsuredLogic lists the selectable sums insured.
type SumInsuredLogic struct {
	Options []decimal.Decimal `json:"options"`
}

// PremiumRow prices one (age band, family size) combination.
type PremiumRow struct {
	AgeBand    string          `json:"age_band"`
	FamilySize int             `json:"family_size"`
	Premium    decimal.Decimal `json:"premium"`
}

// PremiumMatrix holds the premium rows in document order.
type PremiumMatrix struct {
	Premiums []PremiumRow `json:"premiums"`
}

// Lookup returns the first row matching ageBand and familySize.
func (m *PremiumMatrix) Lookup(ageBand string, familySize int) (PremiumRow, bool) {
	if m == nil {
		return PremiumRow{}, false
	}
	for _, row := range m.Premiums {
		if row.AgeBand == ageBand && row.FamilySize == familySize {
			return row, true
		}
	}
	return PremiumRow{}, false
}

// Rider is an optional add-on cover. A nil Limit means the limit is not capped.
type Rider struct {
	Name  string           `json:"name"`
	Limit *decimal.Decimal `json:"limit,omitempty"`
}

// WalletFlexIntegration bounds the flexible wallet contribution.
type WalletFlexIntegration struct {
	MinContribution *decimal.Decimal `json:"min_contribution,omitempty"`
	MaxContribution *decimal.Decimal `json:"max_contribution,omitempty"`
}

// PaymentOptions lists the accepted payment methods.
type PaymentOptions struct {
	Methods []string `json:"methods"`
}

// Branding carries tenant presentation hints.
type Branding struct {
	Font            string `json:"font,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
}

// PlanConfiguration is a plan document. Every section is optional.
type PlanConfiguration struct {
	FamilyDefinition      *FamilyDefinition      `json:"family_definition,omitempty"`
	SumInsuredLogic       *SumInsuredLogic       `json:"sum_insured_logic,omitempty"`
	PremiumMatrix         *PremiumMatrix         `json:"premium_matrix,omitempty"`
	Riders                []Rider                `json:"riders,omitempty"`
	WalletFlexIntegration *WalletFlexIntegration `json:"wallet_flex_integration,omitempty"`
	PaymentOptions        *PaymentOptions        `json:"payment_options,omitempty"`
	Branding              *Branding              `json:"branding,omitempty"`
}

// Default wallet bounds used when the document omits them.
var (
	DefaultWalletMin = decimal.Zero
	DefaultWalletMax = decimal.NewFromInt(10000)
)

// Members returns the family members, or nil when the section is absent.
func (c *PlanConfiguration) Members() []FamilyMember {
	if c == nil || c.FamilyDefinition == nil {
		return nil
	}
	return c.FamilyDefinition.Members
}

// SumInsuredOptions returns the selectable sums insured.
func (c *PlanConfiguration) SumInsuredOptions() []decimal.Decimal {
	if c == nil || c.SumInsuredLogic == nil {
		return nil
	}
	return c.SumInsuredLogic.Options
}

// Premiums returns the premium rows in document order.
func (c *PlanConfiguration) Premiums() []PremiumRow {
	if c == nil || c.PremiumMatrix == nil {
		return nil
	}
	return c.PremiumMatrix.Premiums
}

// PaymentMethods returns the accepted payment methods.
func (c *PlanConfiguration) PaymentMethods() []string {
	if c == nil || c.PaymentOptions == nil {
		return nil
	}
	return c.PaymentOptions.Methods
}

// WalletBounds returns the contribution bounds with defaults applied.
// A maximum below the minimum collapses to the minimum.
func (c *PlanConfiguration) WalletBounds() (decimal.Decimal, decimal.Decimal) {
	minimum, maximum := DefaultWalletMin, DefaultWalletMax
	if c != nil && c.WalletFlexIntegration != nil {
		if c.WalletFlexIntegration.MinContribution != nil {
			minimum = *c.WalletFlexIntegration.MinContribution
		}
		if c.WalletFlexIntegration.MaxContribution != nil {
			maximum = *c.WalletFlexIntegration.MaxContribution
		}
	}
	if maximum.LessThan(minimum) {
		maximum = minimum
	}
	return minimum, maximum
}

// BrandingHints returns the branding section or the zero value.
func (c *PlanConfiguration) BrandingHints() Branding {
	if c == nil || c.Branding == nil {
		return Branding{}
	}
	return *c.Branding
}

// Clone returns a deep copy.
func (c *PlanConfiguration) Clone() *PlanConfiguration {
	if c == nil {
		return nil
	}
	out := &PlanConfiguration{}
	if c.FamilyDefinition != nil {
		out.FamilyDefinition = &FamilyDefinition{Members: cloneSlice(c.FamilyDefinition.Members)}
	}
	if c.SumInsuredLogic != nil {
		out.SumInsuredLogic = &SumInsuredLogic{Options: cloneSlice(c.SumInsuredLogic.Options)}
	}
	if c.PremiumMatrix != nil {
		out.PremiumMatrix = &PremiumMatrix{Premiums: cloneSlice(c.PremiumMatrix.Premiums)}
	}
	out.Riders = cloneRiders(c.Riders)
	if c.WalletFlexIntegration != nil {
		out.WalletFlexIntegration = &WalletFlexIntegration{
			MinContribution: cloneDecimal(c.WalletFlexIntegration.MinContribution),
			MaxContribution: cloneDecimal(c.WalletFlexIntegration.MaxContribution),
		}
	}
	if c.PaymentOptions != nil {
		out.PaymentOptions = &PaymentOptions{Methods: cloneSlice(c.PaymentOptions.Methods)}
	}
	if c.Branding != nil {
		branding := *c.Branding
		out.Branding = &branding
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneRiders(in []Rider) []Rider {
	if in == nil {
		return nil
	}
	out := make([]Rider, len(in))
	for i, rider := range in {
		out[i] = Rider{Name: rider.Name, Limit: cloneDecimal(rider.Limit)}
	}
	return out
}

func cloneDecimal(in *decimal.Decimal) *decimal.Decimal {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
