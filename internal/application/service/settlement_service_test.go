package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// settle approves an advance of the given amount and opens its settlement
func (h *harness) settle(amount string, opts ...func(*ExpenseInput)) (advance, settlement *entity.ExpenseSheet) {
	h.t.Helper()
	advance = h.approved(h.sheet("ADV-001", h.expense("Travel advance", amount, opts...)))
	settlements, err := h.settlements.SettleAdvance(h.ctx, h.f.EmployeeUser, []int64{advance.ID})
	require.NoError(h.t, err)
	require.Len(h.t, settlements, 1)
	return h.reload(advance.ID), settlements[0]
}

// verify records the actual spending of every settlement line
func (h *harness) verify(settlement *entity.ExpenseSheet, real string) {
	h.t.Helper()
	for _, l := range settlement.Lines {
		_, err := h.expenses.Update(h.ctx, h.f.AccountantUser, l.ID, ExpenseInput{
			RealExpense: ptr(money(real)),
			Checked:     ptr(true),
		})
		require.NoError(h.t, err)
	}
}

func TestSettlementService_SettleAdvance(t *testing.T) {
	h := newHarness(t)
	advance, settlement := h.settle("1000")

	assert.Equal(t, "SETTLEMENT ADV-001", settlement.Name)
	assert.True(t, settlement.IsLiquidation)
	assert.Equal(t, advance.ID, *settlement.OriginalSheetID)
	assert.Equal(t, entity.SheetStateDraft, settlement.State)
	require.Len(t, settlement.Lines, 1)
	assert.Equal(t, "1000.00", settlement.Lines[0].TotalAmount.StringFixed(2))
	assert.False(t, settlement.Lines[0].Checked)
	assert.NotEqual(t, advance.Lines[0].ID, settlement.Lines[0].ID)

	assert.Equal(t, settlement.ID, *advance.SettlementSheetID)
	assert.Equal(t, entity.LiquidationLiquidated, advance.LiquidationStatus)
	assert.Equal(t, entity.SheetStateApprove, advance.State)

	last := h.events.events[len(h.events.events)-1]
	assert.Equal(t, event.TypeAdvanceSettled, last.Type)
	assert.Equal(t, "SETTLEMENT ADV-001", last.GetPayloadString("settlement_name"))

	_, err := h.settlements.SettleAdvance(h.ctx, h.f.EmployeeUser, []int64{advance.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrUser))
	assert.Contains(t, err.Error(), "already has a settlement")

	_, err = h.settlements.SettleAdvance(h.ctx, h.f.EmployeeUser, []int64{settlement.ID})
	assert.True(t, errors.Is(err, expense.ErrUser))
}

func TestSettlementService_VerificationBelongsToApprover(t *testing.T) {
	h := newHarness(t)
	_, settlement := h.settle("1000")
	line := settlement.Lines[0]

	_, err := h.expenses.Update(h.ctx, h.f.EmployeeUser, line.ID, ExpenseInput{
		RealExpense: ptr(money("5000")),
		Checked:     ptr(true),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrAccess))
	assert.Equal(t, "Only the approver can verify the real expense of a line.", err.Error())

	unchanged := h.reload(settlement.ID)
	assert.False(t, unchanged.Lines[0].Checked)
	assert.Equal(t, "1000.00", unchanged.Refund.StringFixed(2))

	_, err = h.expenses.Update(h.ctx, h.f.ManagerUser, line.ID, ExpenseInput{
		RealExpense: ptr(money("700")),
		Checked:     ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", h.reload(settlement.ID).Refund.StringFixed(2))

	_, err = h.expenses.Create(h.ctx, h.f.EmployeeUser, ExpenseInput{
		Name:        ptr("Taxi"),
		CategoryID:  &h.f.Category.ID,
		TotalAmount: ptr(money("40")),
		Checked:     ptr(true),
	})
	assert.True(t, errors.Is(err, expense.ErrAccess))
}

// staleSheets misses existing settlements, as a concurrent writer would
type staleSheets struct {
	port.SheetRepository
}

func (staleSheets) GetByOriginalSheetID(ctx context.Context, originalID int64) (*entity.ExpenseSheet, error) {
	return nil, nil
}

func TestSettlementService_UniqueSettlementPerAdvance(t *testing.T) {
	h := newHarness(t)
	advance, _ := h.settle("1000")

	stores := h.stores
	stores.Sheets = staleSheets{SheetRepository: h.stores.Sheets}
	svc := NewSettlementService(stores, h.events, fixedClock, nopLogger{})

	_, err := svc.SettleAdvance(h.ctx, h.f.EmployeeUser, []int64{advance.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrValidation))
	assert.Equal(t, `The advance "ADV-001" already has a settlement.`, err.Error())
}

func TestSettlementService_RequiresApproval(t *testing.T) {
	h := newHarness(t)
	draft := h.sheet("ADV-002", h.expense("Travel advance", "500"))

	_, err := h.settlements.SettleAdvance(h.ctx, h.f.EmployeeUser, []int64{draft.ID})
	require.Error(t, err)
	assert.Equal(t, `Advances can only be settled on forms with a status of "Approved"`, err.Error())
	assert.Nil(t, h.reload(draft.ID).SettlementSheetID)
}

func TestSettlementService_DeleteSettlementFreesAdvance(t *testing.T) {
	h := newHarness(t)
	advance, settlement := h.settle("1000")

	err := h.sheets.Delete(h.ctx, h.f.EmployeeUser, advance.ID)
	assert.True(t, errors.Is(err, expense.ErrUser))

	require.NoError(t, h.sheets.Delete(h.ctx, h.f.EmployeeUser, settlement.ID))
	freed := h.reload(advance.ID)
	assert.Nil(t, freed.SettlementSheetID)
	assert.Equal(t, entity.LiquidationPending, freed.LiquidationStatus)
}

func TestSettlementService_RefundDocuments(t *testing.T) {
	t.Run("unspent advance is invoiced to the employee", func(t *testing.T) {
		h := newHarness(t)
		_, settlement := h.settle("1000")
		h.verify(settlement, "700")

		settlement = h.reload(settlement.ID)
		assert.Equal(t, "700.00", settlement.TotalVerified.StringFixed(2))
		assert.Equal(t, "300.00", settlement.Refund.StringFixed(2))

		h.approved(settlement)
		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.NoError(t, err)
		require.Len(t, posted[0].Moves, 1)

		invoice := posted[0].Moves[0]
		assert.Equal(t, entity.MoveTypeOutInvoice, invoice.MoveType)
		assert.Equal(t, h.f.SaleJournal.ID, invoice.JournalID)
		assert.Equal(t, "INV/2024/0001", invoice.Name)
		assert.Equal(t, "300.00", invoice.AmountTotal.StringFixed(2))
		assert.True(t, invoice.Balanced())

		receivable := linesByType(invoice, entity.LineTypePaymentTerm)
		require.Len(t, receivable, 1)
		assert.Equal(t, h.f.ReceivableAccount.ID, receivable[0].AccountID)
		assert.Equal(t, "300.00", receivable[0].Debit.StringFixed(2))

		payments, err := h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, PaymentRequest{
			SheetIDs:  []int64{settlement.ID},
			JournalID: h.f.BankJournal.ID,
		})
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, entity.PaymentInbound, payments[0].PaymentType)
		assert.Equal(t, entity.SheetStateDone, h.reload(settlement.ID).State)
	})

	t.Run("company-paid advance stays open until the invoice is paid", func(t *testing.T) {
		h := newHarness(t)
		_, settlement := h.settle("1000", paidByCompany)
		assert.Equal(t, entity.PaymentModeCompanyAccount, settlement.Lines[0].PaymentMode)
		h.verify(settlement, "700")
		h.approved(h.reload(settlement.ID))

		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.NoError(t, err)
		require.Len(t, posted[0].Moves, 1)
		assert.Equal(t, entity.MoveTypeOutInvoice, posted[0].Moves[0].MoveType)
		assert.Equal(t, entity.SheetStatePost, posted[0].State)
		assert.Equal(t, entity.PaymentStateNotPaid, posted[0].PaymentState)
		assert.Equal(t, "300.00", posted[0].AmountResidual.StringFixed(2))

		_, err = h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, PaymentRequest{
			SheetIDs:  []int64{settlement.ID},
			JournalID: h.f.BankJournal.ID,
		})
		require.NoError(t, err)
		paid := h.reload(settlement.ID)
		assert.Equal(t, entity.SheetStateDone, paid.State)
		assert.Equal(t, entity.PaymentStatePaid, paid.PaymentState)
		assert.True(t, paid.AmountResidual.IsZero())
	})

	t.Run("overspent advance is billed by the employee", func(t *testing.T) {
		h := newHarness(t)
		_, settlement := h.settle("1000")
		h.verify(settlement, "1200")
		h.approved(h.reload(settlement.ID))

		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.NoError(t, err)
		bill := posted[0].Moves[0]
		assert.Equal(t, entity.MoveTypeInInvoice, bill.MoveType)
		assert.Equal(t, h.f.PurchaseJournal.ID, bill.JournalID)
		assert.Equal(t, "200.00", bill.AmountTotal.StringFixed(2))

		payable := linesByType(bill, entity.LineTypePaymentTerm)
		require.Len(t, payable, 1)
		assert.Equal(t, h.f.PayableAccount.ID, payable[0].AccountID)
		assert.Equal(t, "200.00", payable[0].Credit.StringFixed(2))
	})

	t.Run("exact spend is settled without lines", func(t *testing.T) {
		h := newHarness(t)
		_, settlement := h.settle("1000")
		h.verify(settlement, "1000")
		h.approved(h.reload(settlement.ID))

		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.NoError(t, err)
		move := posted[0].Moves[0]
		assert.Empty(t, move.Lines)
		assert.Equal(t, entity.PaymentStatePaid, move.PaymentState)
		assert.Equal(t, entity.SheetStateDone, posted[0].State)
	})
}

func TestSettlementService_MissingReimbursementJournal(t *testing.T) {
	withoutReimbursementJournal := func(h *harness) {
		require.NoError(h.t, h.stores.Catalog.UpdateCompanySettings(h.ctx, h.f.Company.ID, port.CompanySettings{
			ExpenseJournalID:     h.f.Company.ExpenseJournalID,
			PayableAccountID:     h.f.Company.PayableAccountID,
			ReceivableAccountID:  h.f.Company.ReceivableAccountID,
			OutstandingAccountID: h.f.Company.OutstandingAccountID,
		}))
	}

	t.Run("positive refund fails", func(t *testing.T) {
		h := newHarness(t)
		withoutReimbursementJournal(h)
		_, settlement := h.settle("1000")
		h.verify(settlement, "700")
		h.approved(h.reload(settlement.ID))

		_, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.Error(t, err)
		assert.Equal(t, `You must set up a "Reimbursement Journal" in Employee Expense Settings`, err.Error())
		assert.Equal(t, entity.SheetStateApprove, h.reload(settlement.ID).State)
	})

	t.Run("zero refund falls back to the expense journal", func(t *testing.T) {
		h := newHarness(t)
		withoutReimbursementJournal(h)
		_, settlement := h.settle("1000")
		h.verify(settlement, "1000")
		h.approved(h.reload(settlement.ID))

		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{settlement.ID})
		require.NoError(t, err)
		assert.Equal(t, h.f.PurchaseJournal.ID, posted[0].Moves[0].JournalID)
	})
}
