package expense

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// MoneyPlaces is the rounding precision of every monetary amount
const MoneyPlaces = 2

// Round rounds an amount to the currency precision
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// VerifiedTotal returns the audited amount when the line was checked, else zero
func VerifiedTotal(e *entity.Expense) decimal.Decimal {
	if !e.Checked {
		return decimal.Zero
	}
	return Round(e.RealExpense)
}

// ApplyTravelTotal sets the line total from the lodging and fare amounts
// when either of them is filled in.
func ApplyTravelTotal(e *entity.Expense) {
	if e.ExpenseAmount.IsZero() && e.TicketAmount.IsZero() {
		return
	}
	e.TotalAmount = Round(e.ExpenseAmount.Add(e.TicketAmount))
}

// LiquidationTotals returns the verified total and the refund of a sheet.
// Both are zero unless the sheet is a liquidation.
func LiquidationTotals(isLiquidation bool, total decimal.Decimal, lines []*entity.Expense) (verified, refund decimal.Decimal) {
	if !isLiquidation {
		return decimal.Zero, decimal.Zero
	}
	verified = decimal.Zero
	for _, l := range lines {
		verified = verified.Add(VerifiedTotal(l))
	}
	verified = Round(verified)
	return verified, Round(total.Sub(verified))
}

// SheetTotal sums the line totals
func SheetTotal(lines []*entity.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalAmount)
	}
	return Round(total)
}

// RefundMoveType returns the document type generated for a refund:
// a vendor bill when negative, a customer invoice otherwise.
func RefundMoveType(refund decimal.Decimal) string {
	if refund.IsNegative() {
		return entity.MoveTypeInInvoice
	}
	return entity.MoveTypeOutInvoice
}

// LiquidationStatus reports whether an advance has been settled
func LiquidationStatus(settlementSheetID *int64) string {
	if settlementSheetID != nil {
		return entity.LiquidationLiquidated
	}
	return entity.LiquidationPending
}

// IsDuplicate returns true if two lines look like the same expense reported twice
func IsDuplicate(a, b *entity.Expense) bool {
	if a.ID == b.ID || a.EmployeeID != b.EmployeeID {
		return false
	}
	if a.CategoryID == nil || b.CategoryID == nil || *a.CategoryID != *b.CategoryID {
		return false
	}
	if a.Date == nil || b.Date == nil || !sameDay(*a.Date, *b.Date) {
		return false
	}
	return a.TotalAmount.Equal(b.TotalAmount)
}
