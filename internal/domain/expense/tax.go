package expense

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// TaxAmount is the share of a total attributed to one tax
type TaxAmount struct {
	Tax    *entity.Tax
	Amount decimal.Decimal
}

// TaxSplit is a tax-included total split into its base and tax amounts
type TaxSplit struct {
	Base  decimal.Decimal
	Taxes []TaxAmount
}

// TotalTax returns the sum of all tax amounts
func (s TaxSplit) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

// SplitTaxIncluded splits a total that already includes the given taxes.
// The base absorbs rounding so that base plus taxes equals the total exactly.
func SplitTaxIncluded(total decimal.Decimal, taxes []*entity.Tax) TaxSplit {
	total = Round(total)
	rate := decimal.Zero
	for _, t := range taxes {
		rate = rate.Add(t.Rate)
	}
	if len(taxes) == 0 || rate.IsZero() {
		return TaxSplit{Base: total}
	}

	base := Round(total.Div(decimal.NewFromInt(1).Add(rate.Div(hundred))))
	split := TaxSplit{Taxes: make([]TaxAmount, 0, len(taxes))}
	for _, t := range taxes {
		split.Taxes = append(split.Taxes, TaxAmount{
			Tax:    t,
			Amount: Round(base.Mul(t.Rate).Div(hundred)),
		})
	}
	split.Base = total.Sub(split.TotalTax())
	return split
}
