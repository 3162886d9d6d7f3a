package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

func linesByType(m *entity.Move, displayType string) []*entity.MoveLine {
	var out []*entity.MoveLine
	for _, l := range m.Lines {
		if l.DisplayType == displayType {
			out = append(out, l)
		}
	}
	return out
}

func TestAccountingService_VendorBill(t *testing.T) {
	h := newHarness(t)
	hotel := h.expense("Hotel", "118", withTaxes(h.f.VAT.ID))
	sheet := h.approved(h.sheet("Cusco", hotel))

	_, err := h.accounting.CreateMoves(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	assert.Equal(t, "Only users with rol Accountant, can create journal entries", err.Error())

	created, err := h.accounting.CreateMoves(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
	require.NoError(t, err)
	require.Len(t, created[0].Moves, 1)
	bill := created[0].Moves[0]

	assert.Equal(t, entity.SheetStateApprove, created[0].State)
	assert.Equal(t, entity.MoveTypeInInvoice, bill.MoveType)
	assert.Equal(t, entity.MoveStateDraft, bill.State)
	assert.Equal(t, h.f.PurchaseJournal.ID, bill.JournalID)
	assert.Equal(t, h.f.EmployeeContact.ID, *bill.PartnerID)
	assert.True(t, bill.Balanced())

	product := linesByType(bill, entity.LineTypeProduct)
	require.Len(t, product, 1)
	assert.Equal(t, "100.00", product[0].Debit.StringFixed(2))
	assert.Equal(t, h.f.ExpenseAccount.ID, product[0].AccountID)
	assert.Equal(t, hotel.ID, *product[0].ExpenseID)

	tax := linesByType(bill, entity.LineTypeTax)
	require.Len(t, tax, 1)
	assert.Equal(t, "18.00", tax[0].Debit.StringFixed(2))
	assert.Equal(t, h.f.TaxAccount.ID, tax[0].AccountID)

	payable := linesByType(bill, entity.LineTypePaymentTerm)
	require.Len(t, payable, 1)
	assert.Equal(t, "118.00", payable[0].Credit.StringFixed(2))
	assert.Equal(t, h.f.PayableAccount.ID, payable[0].AccountID)

	_, err = h.accounting.CreateMoves(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
	assert.True(t, errors.Is(err, expense.ErrUser))

	posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.SheetStatePost, posted[0].State)
	assert.Equal(t, entity.PaymentStateNotPaid, posted[0].PaymentState)
	assert.Equal(t, "118.00", posted[0].AmountResidual.StringFixed(2))
	require.Len(t, posted[0].Moves, 1)
	assert.Equal(t, "BILL/2024/0001", posted[0].Moves[0].Name)
	assert.Equal(t, entity.MoveStatePosted, posted[0].Moves[0].State)
	assert.Equal(t, entity.ExpenseStateApproved, posted[0].Lines[0].State)
}

func TestAccountingService_PostCreatesMissingMoves(t *testing.T) {
	h := newHarness(t)
	sheet := h.approved(h.sheet("Lima", h.expense("Hotel", "300"), h.expense("Taxi", "45.50")))

	posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
	require.NoError(t, err)
	require.Len(t, posted[0].Moves, 1)
	assert.Equal(t, "345.50", posted[0].Moves[0].AmountTotal.StringFixed(2))
	assert.Len(t, linesByType(posted[0].Moves[0], entity.LineTypeProduct), 2)
	assert.Equal(t, event.TypeSheetPosted, h.events.types()[len(h.events.types())-1])

	draft := h.sheet("Draft", h.expense("Dinner", "30"))
	_, err = h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{draft.ID})
	assert.True(t, errors.Is(err, expense.ErrUser))
}

func TestAccountingService_RegisterPayment(t *testing.T) {
	post := func(h *harness) *entity.ExpenseSheet {
		sheet := h.approved(h.sheet("Cusco", h.expense("Hotel", "118", withTaxes(h.f.VAT.ID))))
		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		require.NoError(h.t, err)
		return posted[0]
	}

	t.Run("requires treasury", func(t *testing.T) {
		h := newHarness(t)
		sheet := post(h)

		_, err := h.accounting.RegisterPayment(h.ctx, h.f.AccountantUser, PaymentRequest{SheetIDs: []int64{sheet.ID}, JournalID: h.f.BankJournal.ID})
		require.Error(t, err)
		assert.Equal(t, "Only users with rol Treasury, can register payments", err.Error())
	})

	t.Run("full payment", func(t *testing.T) {
		h := newHarness(t)
		sheet := post(h)

		payments, err := h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, PaymentRequest{
			SheetIDs:  []int64{sheet.ID},
			JournalID: h.f.BankJournal.ID,
			Date:      day(2024, 5, 25),
		})
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, "118.00", payments[0].Amount.StringFixed(2))
		assert.Equal(t, entity.PaymentOutbound, payments[0].PaymentType)
		assert.Equal(t, entity.PaymentRecordPosted, payments[0].State)
		assert.Equal(t, sheet.Moves[0].ID, *payments[0].InvoiceID)

		paid := h.reload(sheet.ID)
		assert.Equal(t, entity.SheetStateDone, paid.State)
		assert.Equal(t, entity.PaymentStatePaid, paid.PaymentState)
		assert.True(t, paid.AmountResidual.IsZero())
		assert.Equal(t, entity.ExpenseStateDone, paid.Lines[0].State)

		entry, err := h.stores.Moves.GetByID(h.ctx, *payments[0].MoveID)
		require.NoError(t, err)
		assert.Equal(t, "BNK1/2024/0001", entry.Name)
		assert.True(t, entry.Balanced())
		assert.Nil(t, entry.SheetID)

		last := h.events.events[len(h.events.events)-1]
		assert.Equal(t, event.TypeSheetPaid, last.Type)
		assert.Equal(t, "118.00", last.GetPayloadString("amount"))

		_, err = h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, PaymentRequest{SheetIDs: []int64{sheet.ID}, JournalID: h.f.BankJournal.ID})
		assert.True(t, errors.Is(err, expense.ErrUser))
	})

	t.Run("partial payment", func(t *testing.T) {
		h := newHarness(t)
		sheet := post(h)

		_, err := h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, PaymentRequest{
			SheetIDs:  []int64{sheet.ID},
			JournalID: h.f.BankJournal.ID,
			Amount:    ptr(money("50")),
		})
		require.NoError(t, err)

		partial := h.reload(sheet.ID)
		assert.Equal(t, entity.PaymentStatePartial, partial.PaymentState)
		assert.Equal(t, "68.00", partial.AmountResidual.StringFixed(2))
	})

	errorCases := []struct {
		name string
		req  func(h *harness, sheet *entity.ExpenseSheet) PaymentRequest
		kind error
	}{
		{
			name: "amount above the amount due",
			req: func(h *harness, sheet *entity.ExpenseSheet) PaymentRequest {
				return PaymentRequest{SheetIDs: []int64{sheet.ID}, JournalID: h.f.BankJournal.ID, Amount: ptr(money("200"))}
			},
			kind: expense.ErrValidation,
		},
		{
			name: "negative amount",
			req: func(h *harness, sheet *entity.ExpenseSheet) PaymentRequest {
				return PaymentRequest{SheetIDs: []int64{sheet.ID}, JournalID: h.f.BankJournal.ID, Amount: ptr(money("-5"))}
			},
			kind: expense.ErrValidation,
		},
		{
			name: "same sheet selected twice",
			req: func(h *harness, sheet *entity.ExpenseSheet) PaymentRequest {
				return PaymentRequest{SheetIDs: []int64{sheet.ID, sheet.ID}, JournalID: h.f.BankJournal.ID}
			},
			kind: expense.ErrValidation,
		},
		{
			name: "not a bank journal",
			req: func(h *harness, sheet *entity.ExpenseSheet) PaymentRequest {
				return PaymentRequest{SheetIDs: []int64{sheet.ID}, JournalID: h.f.PurchaseJournal.ID}
			},
			kind: expense.ErrUser,
		},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sheet := post(h)

			_, err := h.accounting.RegisterPayment(h.ctx, h.f.TreasuryUser, tt.req(h, sheet))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Equal(t, entity.SheetStatePost, h.reload(sheet.ID).State)
		})
	}
}

func TestAccountingService_CompanyPaidSheet(t *testing.T) {
	companySheet := func(h *harness, journalID *int64) *entity.ExpenseSheet {
		flight := h.expense("Flight", "590", paidByCompany, withTaxes(h.f.VAT.ID))
		sheet, err := h.sheets.Create(h.ctx, h.f.EmployeeUser, SheetInput{
			Name:       ptr("Flight to Cusco"),
			JournalID:  journalID,
			ExpenseIDs: []int64{flight.ID},
		})
		require.NoError(h.t, err)
		return h.approved(sheet)
	}

	t.Run("journal without manual payment method", func(t *testing.T) {
		h := newHarness(t)
		sheet := companySheet(h, &h.f.PurchaseJournal.ID)

		_, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		require.Error(t, err)
		assert.Equal(t, "You need to add a manual payment method on the journal (Vendor Bills)", err.Error())
	})

	t.Run("missing journal", func(t *testing.T) {
		h := newHarness(t)
		sheet := companySheet(h, nil)

		_, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		assert.True(t, errors.Is(err, expense.ErrUser))
	})

	t.Run("bank journal", func(t *testing.T) {
		h := newHarness(t)
		sheet := companySheet(h, &h.f.BankJournal.ID)

		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		require.NoError(t, err)
		assert.Equal(t, entity.SheetStateDone, posted[0].State)
		assert.Equal(t, entity.PaymentStatePaid, posted[0].PaymentState)
		require.Len(t, posted[0].Moves, 1)

		entry := posted[0].Moves[0]
		assert.Equal(t, entity.MoveTypeEntry, entry.MoveType)
		assert.Equal(t, "BNK1/2024/0001", entry.Name)
		assert.True(t, entry.Balanced())
		outstanding := linesByType(entry, entity.LineTypePaymentTerm)
		require.Len(t, outstanding, 1)
		assert.Equal(t, h.f.OutstandingAccount.ID, outstanding[0].AccountID)
		assert.Equal(t, "590.00", outstanding[0].Credit.StringFixed(2))

		payment, err := h.stores.Payments.GetByID(h.ctx, *entry.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentRecordPosted, payment.State)
		assert.Equal(t, "590.00", payment.Amount.StringFixed(2))
	})
}
