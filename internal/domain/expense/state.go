package expense

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// DeriveSheetState computes the displayed state of a sheet from its lines,
// its approval state and the moves generated for it.
func DeriveSheetState(lineCount int, approvalState string, moves []*entity.Move, paymentState string) string {
	if lineCount == 0 {
		return entity.SheetStateDraft
	}

	switch approvalState {
	case entity.ApprovalNone:
		return entity.SheetStateDraft
	case entity.ApprovalCancel:
		return entity.SheetStateCancel
	}

	if len(moves) > 0 {
		if paymentState != "" && paymentState != entity.PaymentStateNotPaid {
			return entity.SheetStateDone
		}
		for _, m := range moves {
			if !m.IsDraft() {
				return entity.SheetStatePost
			}
		}
		return entity.SheetStateApprove
	}

	// submitted or approved without accounting documents
	return approvalState
}

// DeriveExpenseState computes the state of a line from its parent sheet.
// hasMoves tells whether the parent sheet owns any move.
func DeriveExpenseState(sheet *entity.ExpenseSheet, hasMoves bool) string {
	if sheet == nil {
		return entity.ExpenseStateDraft
	}
	switch sheet.State {
	case entity.SheetStateDraft:
		return entity.ExpenseStateReported
	case entity.SheetStateCancel:
		return entity.ExpenseStateRefused
	case entity.SheetStateApprove, entity.SheetStatePost:
		return entity.ExpenseStateApproved
	}
	if !hasMoves {
		return entity.ExpenseStateSubmitted
	}
	return entity.ExpenseStateDone
}

// DerivePaymentState computes the payment state and residual of a sheet.
// Company-paid sheets are settled as soon as one payment is booked; employee-paid
// sheets follow their bill.
func DerivePaymentState(paymentMode string, moves []*entity.Move) (string, decimal.Decimal) {
	if paymentMode == entity.PaymentModeCompanyAccount {
		return companyPaymentState(moves)
	}

	for _, m := range moves {
		if m.State == entity.MoveStatePosted {
			return moves[0].PaymentState, sumResidual(moves)
		}
	}
	return entity.PaymentStateNotPaid, decimal.Zero
}

func companyPaymentState(moves []*entity.Move) (string, decimal.Decimal) {
	booked := false
	for _, m := range moves {
		if !m.IsDraft() {
			booked = true
			break
		}
	}

	if booked {
		for _, m := range moves {
			if !m.IsReversed() {
				return entity.PaymentStatePaid, decimal.Zero
			}
		}
		return entity.PaymentStateReversed, decimal.Zero
	}

	states := make(map[string]bool)
	for _, m := range moves {
		states[m.PaymentState] = true
	}
	residual := sumResidual(moves)

	switch {
	case len(states) == 0:
		return entity.PaymentStateNotPaid, residual
	case len(states) == 1:
		for s := range states {
			return s, residual
		}
	case states[entity.PaymentStatePartial] || states[entity.PaymentStatePaid]:
		return entity.PaymentStatePartial, residual
	}
	return entity.PaymentStateNotPaid, residual
}

func sumResidual(moves []*entity.Move) decimal.Decimal {
	total := decimal.Zero
	for _, m := range moves {
		total = total.Add(m.AmountResidual)
	}
	return Round(total)
}

// InvoicePaymentState computes the payment state of a posted invoice from its residual
func InvoicePaymentState(total, residual decimal.Decimal) string {
	switch {
	case residual.IsZero():
		return entity.PaymentStatePaid
	case residual.Abs().LessThan(total.Abs()):
		return entity.PaymentStatePartial
	default:
		return entity.PaymentStateNotPaid
	}
}
