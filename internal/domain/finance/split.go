// Package finance splits the monetary value of a delivery between the
// requesting office and headquarters.
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the scale office values are rounded to.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

type Split struct {
	Total        decimal.Decimal
	Office       decimal.Decimal
	Headquarters decimal.Decimal
}

// Calculate returns total = qty*unit, office = total*pct/100 (rounded to
// CurrencyPlaces) and headquarters = total - office, so the two shares always
// add up to the total exactly.
func Calculate(quantity int64, unitValue, percentageOffice decimal.Decimal) (Split, error) {
	if quantity < 0 {
		return Split{}, fmt.Errorf("quantity must not be negative, got %d", quantity)
	}
	if unitValue.IsNegative() {
		return Split{}, fmt.Errorf("unit value must not be negative, got %s", unitValue)
	}
	if err := ValidatePercentage(percentageOffice); err != nil {
		return Split{}, err
	}

	total := unitValue.Mul(decimal.NewFromInt(quantity))
	office := total.Mul(percentageOffice).Div(hundred).Round(CurrencyPlaces)
	return Split{
		Total:        total,
		Office:       office,
		Headquarters: total.Sub(office),
	}, nil
}

func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("percentage must be between 0 and 100, got %s", p)
	}
	return nil
}

// Balanced reports whether the shares reconcile with the total.
func (s Split) Balanced() bool {
	return s.Office.Add(s.Headquarters).Equal(s.Total)
}
