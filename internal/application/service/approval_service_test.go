package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

func TestApprovalService_Submit(t *testing.T) {
	h := newHarness(t)
	sheet := h.sheet("Lima", h.expense("Hotel", "300"))

	submitted, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, entity.SheetStateSubmit, submitted[0].State)
	assert.Equal(t, entity.ExpenseStateSubmitted, submitted[0].Lines[0].State)

	activities, err := h.stores.Activities.ListBySheet(h.ctx, sheet.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, h.f.ManagerUser.ID, activities[0].UserID)
	assert.Equal(t, entity.ActivityOpen, activities[0].State)

	require.Len(t, h.events.events, 1)
	evt := h.events.events[0]
	assert.Equal(t, event.TypeSheetSubmitted, evt.Type)
	assert.Equal(t, h.f.ManagerUser.ID, evt.GetPayloadInt("notify_user_id"))

	_, err = h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	assert.True(t, errors.Is(err, expense.ErrUser))
}

func TestApprovalService_RepeatedSelection(t *testing.T) {
	h := newHarness(t)
	sheet := h.sheet("Lima", h.expense("Hotel", "300"))

	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID, sheet.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrValidation))
	assert.Equal(t, fmt.Sprintf("The expense report %d is selected more than once.", sheet.ID), err.Error())

	assert.Equal(t, entity.SheetStateDraft, h.reload(sheet.ID).State)
	assert.Empty(t, h.events.events)
	activities, err := h.stores.Activities.ListBySheet(h.ctx, sheet.ID)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestApprovalService_SubmitEmpty(t *testing.T) {
	h := newHarness(t)
	sheet, err := h.sheets.Create(h.ctx, h.f.EmployeeUser, SheetInput{Name: ptr("Empty")})
	require.NoError(t, err)

	_, err = h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.Error(t, err)
	assert.Equal(t, emptySheetMessage, err.Error())
	assert.Empty(t, h.events.events)
}

func TestApprovalService_Approve(t *testing.T) {
	h := newHarness(t)
	sheet := h.sheet("Lima", h.expense("Hotel", "300"))
	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.NoError(t, err)

	_, err = h.approvals.Approve(h.ctx, h.f.ManagerUser, []int64{sheet.ID}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrAccess))
	assert.Equal(t, "Only users with rol Accountant, can Approve this expense", err.Error())

	approved, err := h.approvals.Approve(h.ctx, h.f.AccountantUser, []int64{sheet.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, entity.SheetStateApprove, approved[0].State)
	assert.Equal(t, h.f.AccountantUser.ID, *approved[0].ApprovedByID)

	activities, err := h.stores.Activities.ListBySheet(h.ctx, sheet.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, entity.ActivityDone, activities[0].State)

	assert.Equal(t, []event.Type{event.TypeSheetSubmitted, event.TypeSheetApproved}, h.events.types())
}

func TestApprovalService_ApproveDuplicates(t *testing.T) {
	h := newHarness(t)
	h.approved(h.sheet("First", h.expense("Hotel", "300")))
	second := h.sheet("Second", h.expense("Hotel again", "300"))
	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{second.ID})
	require.NoError(t, err)

	_, err = h.approvals.Approve(h.ctx, h.f.AccountantUser, []int64{second.ID}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hotel again")
	assert.Equal(t, entity.SheetStateSubmit, h.reload(second.ID).State)

	approved, err := h.approvals.Approve(h.ctx, h.f.AccountantUser, []int64{second.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, entity.SheetStateApprove, approved[0].State)
}

func TestApprovalService_Refuse(t *testing.T) {
	h := newHarness(t)
	sheet := h.sheet("Lima", h.expense("Hotel", "300"))
	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.NoError(t, err)

	_, err = h.approvals.Refuse(h.ctx, h.f.EmployeeUser, []int64{sheet.ID}, "no receipt")
	assert.True(t, errors.Is(err, expense.ErrAccess))

	refused, err := h.approvals.Refuse(h.ctx, h.f.AccountantUser, []int64{sheet.ID}, "no receipt")
	require.NoError(t, err)
	assert.Equal(t, entity.SheetStateCancel, refused[0].State)
	assert.Equal(t, entity.ExpenseStateRefused, refused[0].Lines[0].State)

	activities, err := h.stores.Activities.ListBySheet(h.ctx, sheet.ID)
	require.NoError(t, err)
	assert.Empty(t, activities)

	messages, err := h.stores.Messages.ListByRecord(h.ctx, entity.ModelSheet, sheet.ID)
	require.NoError(t, err)
	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		bodies = append(bodies, m.Body)
	}
	assert.Contains(t, bodies, "Expense report refused. Reason: no receipt")

	last := h.events.events[len(h.events.events)-1]
	assert.Equal(t, event.TypeSheetRefused, last.Type)
	assert.Equal(t, "no receipt", last.GetPayloadString("reason"))
	assert.Equal(t, h.f.EmployeeUser.ID, last.GetPayloadInt("notify_user_id"))
}

func TestApprovalService_RefusePosted(t *testing.T) {
	h := newHarness(t)
	sheet := h.approved(h.sheet("Lima", h.expense("Hotel", "300")))
	_, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
	require.NoError(t, err)

	_, err = h.approvals.Refuse(h.ctx, h.f.AccountantUser, []int64{sheet.ID}, "")
	require.Error(t, err)
	assert.Equal(t, "You cannot cancel an expense sheet linked to a posted journal entry", err.Error())
}

func TestApprovalService_Reset(t *testing.T) {
	t.Run("submitted sheet by its employee", func(t *testing.T) {
		h := newHarness(t)
		sheet := h.sheet("Lima", h.expense("Hotel", "300"))
		_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
		require.NoError(t, err)

		reset, err := h.approvals.Reset(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
		require.NoError(t, err)
		assert.Equal(t, entity.SheetStateDraft, reset[0].State)
		assert.Equal(t, entity.ExpenseStateReported, reset[0].Lines[0].State)

		activities, err := h.stores.Activities.ListBySheet(h.ctx, sheet.ID)
		require.NoError(t, err)
		assert.Empty(t, activities)
	})

	t.Run("approved sheet needs an accountant", func(t *testing.T) {
		h := newHarness(t)
		sheet := h.approved(h.sheet("Lima", h.expense("Hotel", "300")))

		_, err := h.approvals.Reset(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
		require.Error(t, err)
		assert.Equal(t, "Only users with rol Accountant, can reset an approved or refused expense report", err.Error())
	})

	t.Run("posted bill is reversed", func(t *testing.T) {
		h := newHarness(t)
		sheet := h.approved(h.sheet("Lima", h.expense("Hotel", "300")))
		posted, err := h.accounting.Post(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		require.NoError(t, err)
		require.Len(t, posted[0].Moves, 1)
		bill := posted[0].Moves[0]

		reset, err := h.approvals.Reset(h.ctx, h.f.AccountantUser, []int64{sheet.ID})
		require.NoError(t, err)
		assert.Equal(t, entity.SheetStateDraft, reset[0].State)
		assert.Empty(t, reset[0].Moves)
		assert.Nil(t, reset[0].ApprovedByID)

		original, err := h.stores.Moves.GetByID(h.ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStateReversed, original.PaymentState)
		assert.Nil(t, original.SheetID)
		assert.True(t, original.AmountResidual.IsZero())
	})

	t.Run("draft sheet cannot be reset", func(t *testing.T) {
		h := newHarness(t)
		sheet := h.sheet("Lima", h.expense("Hotel", "300"))

		_, err := h.approvals.Reset(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
		require.Error(t, err)
		assert.True(t, errors.Is(err, expense.ErrUser))
	})
}
