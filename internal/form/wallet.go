package form

import (
	"bytes"
	"fmt"

	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// WalletSplit expresses a wallet amount as employee and employer shares of
// the maximum contribution, in percent.
type WalletSplit struct {
	EmployeePercent decimal.Decimal `json:"employee_percent"`
	EmployerPercent decimal.Decimal `json:"employer_percent"`
}

// WalletComponent holds a single contribution amount within the configured bounds.
type WalletComponent struct{}

func (WalletComponent) Name() string { return "wallet" }

func (WalletComponent) Present(cfg *planconfig.PlanConfiguration) bool {
	return cfg != nil && cfg.WalletFlexIntegration != nil
}

// Render emits the clamped amount, so the value stays within bounds even if
// the selection was set out of range.
func (c WalletComponent) Render(cfg *planconfig.PlanConfiguration, sel *Selection, errs ValidationErrors) Field {
	field := newField(c.Name(), KindSlider, "Wallet contribution", cfg, errs)
	minimum, maximum := cfg.WalletBounds()
	amount := minimum
	if sel != nil && sel.Wallet != nil {
		amount = *sel.Wallet
	}
	amount = ClampWallet(cfg, amount)
	split := SplitWallet(cfg, amount)

	field.Min = &minimum
	field.Max = &maximum
	field.Value = amount
	field.Split = &split
	return field
}

type walletChange struct {
	Amount          *decimal.Decimal `json:"amount"`
	EmployeePercent *decimal.Decimal `json:"employee_percent"`
}

// Apply stores the clamped amount. The value is either a bare amount or an
// object carrying exactly one of "amount" and "employee_percent"; a percent
// is converted to the amount it represents.
func (c WalletComponent) Apply(cfg *planconfig.PlanConfiguration, sel *Selection, change Change) error {
	var amount decimal.Decimal
	if raw := bytes.TrimSpace(change.Value); len(raw) > 0 && raw[0] == '{' {
		var update walletChange
		if err := decodeValue(change, &update); err != nil {
			return err
		}
		switch {
		case update.Amount != nil && update.EmployeePercent != nil:
			return fmt.Errorf("%w: wallet: amount and employee_percent are exclusive", ErrInvalidChange)
		case update.Amount != nil:
			amount = *update.Amount
		case update.EmployeePercent != nil:
			amount = AmountFromEmployeePercent(cfg, *update.EmployeePercent)
		default:
			return fmt.Errorf("%w: wallet: empty change", ErrInvalidChange)
		}
	} else if err := decodeValue(change, &amount); err != nil {
		return err
	}
	clamped := ClampWallet(cfg, amount)
	sel.Wallet = &clamped
	return nil
}

// ClampWallet bounds amount to the configuration's wallet limits.
func ClampWallet(cfg *planconfig.PlanConfiguration, amount decimal.Decimal) decimal.Decimal {
	minimum, maximum := cfg.WalletBounds()
	if amount.LessThan(minimum) {
		return minimum
	}
	if amount.GreaterThan(maximum) {
		return maximum
	}
	return amount
}

// SplitWallet derives the percentage split for amount, rounded to two places.
func SplitWallet(cfg *planconfig.PlanConfiguration, amount decimal.Decimal) WalletSplit {
	_, maximum := cfg.WalletBounds()
	amount = ClampWallet(cfg, amount)
	employee := decimal.Zero
	if maximum.IsPositive() {
		employee = amount.Mul(hundred).Div(maximum).Round(2)
	}
	return WalletSplit{EmployeePercent: employee, EmployerPercent: hundred.Sub(employee)}
}

// AmountFromEmployeePercent converts an employee share back into a clamped amount.
func AmountFromEmployeePercent(cfg *planconfig.PlanConfiguration, percent decimal.Decimal) decimal.Decimal {
	_, maximum := cfg.WalletBounds()
	return ClampWallet(cfg, maximum.Mul(percent).Div(hundred).Round(2))
}
