package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// fakeInspector recognises PDF and PNG by their magic bytes
type fakeInspector struct {
	pages int
}

func (f *fakeInspector) Detect(content []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(content, []byte("%PDF")):
		return "application/pdf", ".pdf", nil
	case bytes.HasPrefix(content, []byte("\x89PNG")):
		return "image/png", ".png", nil
	}
	return "", "", errors.New("unsupported")
}

func (f *fakeInspector) PageCount(content []byte) (int, error) {
	return f.pages, nil
}

func (f *fakeInspector) FirstPageJPEG(content []byte) ([]byte, error) {
	return []byte("jpeg"), nil
}

type mockExtractor struct {
	gotMime  string
	gotImage []byte
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*port.ReceiptSuggestion, error) {
	m.gotImage, m.gotMime = image, mimeType
	return &port.ReceiptSuggestion{Amount: money("59.00"), Currency: "PEN", Vendor: "Taxi Lima", Confidence: 0.9}, nil
}

func TestExpenseService_Create(t *testing.T) {
	h := newHarness(t)

	e := h.expense("Trip to Cusco", "0", func(in *ExpenseInput) {
		in.ExpenseAmount = ptr(money("200"))
		in.TicketAmount = ptr(money("150.5"))
	})

	assert.Equal(t, "350.50", e.TotalAmount.StringFixed(2))
	assert.Equal(t, h.f.ExpenseAccount.ID, *e.AccountID)
	assert.Equal(t, "PEN", e.Currency)
	assert.Equal(t, entity.ExpenseStateDraft, e.State)
	assert.Equal(t, entity.PaymentModeOwnAccount, e.PaymentMode)

	_, err := h.expenses.Create(h.ctx, h.f.EmployeeUser, ExpenseInput{
		Name:          ptr("Bus"),
		TotalAmount:   ptr(money("10")),
		TransportType: ptr("rocket"),
	})
	assert.True(t, errors.Is(err, expense.ErrValidation))
}

func TestExpenseService_ReportExpenses(t *testing.T) {
	t.Run("splits lines by payment mode", func(t *testing.T) {
		h := newHarness(t)
		hotel := h.expense("Hotel", "300")
		taxi := h.expense("Taxi", "40")
		flight := h.expense("Flight", "500", paidByCompany)

		sheets, err := h.expenses.ReportExpenses(h.ctx, h.f.EmployeeUser, []int64{hotel.ID, taxi.ID, flight.ID}, "")
		require.NoError(t, err)
		require.Len(t, sheets, 2)

		assert.Equal(t, "New Expense Report, paid by employee", sheets[0].Name)
		assert.Equal(t, "340.00", sheets[0].TotalAmount.StringFixed(2))
		assert.Len(t, sheets[0].Lines, 2)
		assert.Equal(t, "New Expense Report, paid by company", sheets[1].Name)
		assert.Equal(t, entity.PaymentModeCompanyAccount, sheets[1].PaymentMode)

		for _, l := range sheets[0].Lines {
			assert.Equal(t, entity.ExpenseStateReported, l.State)
		}
	})

	t.Run("skips lines without amount", func(t *testing.T) {
		h := newHarness(t)
		empty := h.expense("Nothing", "0")
		hotel := h.expense("Hotel", "300")

		sheets, err := h.expenses.ReportExpenses(h.ctx, h.f.EmployeeUser, []int64{empty.ID, hotel.ID}, "May trip")
		require.NoError(t, err)
		require.Len(t, sheets, 1)
		assert.Equal(t, "May trip", sheets[0].Name)
		assert.Len(t, sheets[0].Lines, 1)

		left, err := h.expenses.Get(h.ctx, h.f.EmployeeUser, empty.ID)
		require.NoError(t, err)
		assert.Nil(t, left.SheetID)
	})

	errorCases := []struct {
		name  string
		setup func(h *harness) []int64
		want  string
	}{
		{
			name: "nothing with an amount",
			setup: func(h *harness) []int64 {
				return []int64{h.expense("Nothing", "0").ID}
			},
			want: "You cannot report the expenses without amount!",
		},
		{
			name: "already reported",
			setup: func(h *harness) []int64 {
				e := h.expense("Hotel", "300")
				h.sheet("First", e)
				return []int64{e.ID}
			},
			want: "You cannot report twice the same line!",
		},
		{
			name: "missing category",
			setup: func(h *harness) []int64 {
				e, err := h.expenses.Create(h.ctx, h.f.EmployeeUser, ExpenseInput{Name: ptr("Gift"), TotalAmount: ptr(money("20"))})
				require.NoError(h.t, err)
				return []int64{e.ID}
			},
			want: "You can not create report without category.",
		},
		{
			name: "combined payment account modes",
			setup: func(h *harness) []int64 {
				a := h.expense("Hotel", "300")
				b := h.expense("Dinner", "80", func(in *ExpenseInput) {
					in.PaymentAccountMode = ptr(entity.PaymentAccountCompany)
				})
				return []int64{a.ID, b.ID}
			},
			want: "You cannot select expense lines with combined `Payment Method`.",
		},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ids := tt.setup(h)

			_, err := h.expenses.ReportExpenses(h.ctx, h.f.EmployeeUser, ids, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, expense.ErrUser))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestExpenseService_UpdateFollowsReportState(t *testing.T) {
	h := newHarness(t)
	hotel := h.expense("Hotel", "300")
	sheet := h.sheet("Lima", hotel)

	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.NoError(t, err)

	_, err = h.expenses.Update(h.ctx, h.f.EmployeeUser, hotel.ID, ExpenseInput{Name: ptr("Hostel")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrUser))

	updated, err := h.expenses.Update(h.ctx, h.f.AccountantUser, hotel.ID, ExpenseInput{
		RealExpense: ptr(money("280")),
		Checked:     ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "280.00", updated.VerifiedTotal.StringFixed(2))

	_, err = h.approvals.Approve(h.ctx, h.f.AccountantUser, []int64{sheet.ID}, false)
	require.NoError(t, err)

	_, err = h.expenses.Update(h.ctx, h.f.AccountantUser, hotel.ID, ExpenseInput{Checked: ptr(false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "once its report is approved")

	err = h.expenses.Delete(h.ctx, h.f.EmployeeUser, hotel.ID)
	assert.True(t, errors.Is(err, expense.ErrUser))
}

func TestExpenseService_Proofs(t *testing.T) {
	h := newHarness(t)
	inspector := &fakeInspector{pages: 1}
	extractor := &mockExtractor{}
	svc := NewExpenseService(h.stores, newMemoryStorage(), inspector, extractor, h.events, fixedClock, nopLogger{})
	taxi := h.expense("Taxi", "59")

	_, err := svc.UploadProof(h.ctx, h.f.EmployeeUser, taxi.ID, "notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.Equal(t, "Please Only Allowed Formats (PDF, JPG, JPEG or PNG)", err.Error())

	inspector.pages = 0
	_, err = svc.UploadProof(h.ctx, h.f.EmployeeUser, taxi.ID, "empty.pdf", []byte("%PDF-1.7"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrValidation))

	inspector.pages = 2
	updated, err := svc.UploadProof(h.ctx, h.f.EmployeeUser, taxi.ID, "receipt.pdf", []byte("%PDF-1.7 receipt"))
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", updated.ProofFilename)
	assert.Equal(t, "application/pdf", updated.ProofMime)

	proof, err := svc.ReadProof(h.ctx, h.f.EmployeeUser, taxi.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 receipt"), proof.Content)

	suggestion, err := svc.ExtractReceipt(h.ctx, h.f.EmployeeUser, taxi.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taxi Lima", suggestion.Vendor)
	assert.Equal(t, "image/jpeg", extractor.gotMime)
	assert.Equal(t, []byte("jpeg"), extractor.gotImage)

	unchanged, err := svc.Get(h.ctx, h.f.EmployeeUser, taxi.ID)
	require.NoError(t, err)
	assert.Equal(t, "59.00", unchanged.TotalAmount.StringFixed(2))

	_, err = h.expenses.ExtractReceipt(h.ctx, h.f.EmployeeUser, taxi.ID)
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
}

func TestExpenseService_Visibility(t *testing.T) {
	h := newHarness(t)
	h.expense("Hotel", "300")

	outsider := &entity.User{ID: 999, Login: "outsider"}
	list, err := h.expenses.List(h.ctx, outsider, entity.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = h.expenses.List(h.ctx, h.f.AccountantUser, entity.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.expenses.Get(h.ctx, outsider, list[0].ID)
	assert.True(t, errors.Is(err, expense.ErrNotFound))
}
