package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
	domainwf "github.com/garyjia/travel-expense/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	emptySheetMessage = "This expense report is empty. You cannot submit or approve an empty expense report."
	postedMoveMessage = "You cannot cancel an expense sheet linked to a posted journal entry"
)

// ApprovalService drives expense reports through submission and approval.
// Every action takes a batch of sheets and runs in a single transaction.
type ApprovalService interface {
	Submit(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error)
	Approve(ctx context.Context, actor *entity.User, sheetIDs []int64, force bool) ([]*entity.ExpenseSheet, error)
	Refuse(ctx context.Context, actor *entity.User, sheetIDs []int64, reason string) ([]*entity.ExpenseSheet, error)
	Reset(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error)
}

type approvalServiceImpl struct {
	records
	publisher Publisher
	logger    Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(stores Stores, publisher Publisher, clock Clock, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		records:   newRecords(stores, clock),
		publisher: publisher,
		logger:    logger,
	}
}

// batch runs fn on every sheet inside one transaction and publishes the collected events after commit
func (r *records) batch(ctx context.Context, actor *entity.User, ids []int64, publisher Publisher, fn func(ctx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error)) ([]*entity.ExpenseSheet, error) {
	var (
		sheets []*entity.ExpenseSheet
		events []*event.Event
	)
	err := r.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := r.loadSheets(txCtx, actor, ids)
		if err != nil {
			return err
		}
		for _, sheet := range loaded {
			evt, err := fn(txCtx, sheet)
			if err != nil {
				return err
			}
			if evt != nil {
				events = append(events, evt)
			}
		}
		sheets = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, publisher, events)
	return sheets, nil
}

// Submit sends draft sheets for approval
func (s *approvalServiceImpl) Submit(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error) {
	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if len(sheet.Lines) == 0 {
			return nil, expense.Userf(emptySheetMessage)
		}
		if err := expense.CheckPaymentAccountModes(sheet.Lines); err != nil {
			return nil, err
		}

		refusal := fmt.Sprintf("You cannot submit the expense report %q in its current state.", sheet.Name)
		if err := transition(txCtx, sheet, domainwf.TriggerSubmit, refusal); err != nil {
			return nil, err
		}
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}

		responsible, err := s.approver(txCtx, actor, sheet)
		if err != nil {
			return nil, err
		}
		activity := &entity.Activity{
			SheetID: sheet.ID,
			UserID:  responsible,
			Type:    entity.ActivityTypeApproval,
			State:   entity.ActivityOpen,
			Note:    fmt.Sprintf("Please review the expense report %s.", sheet.Name),
		}
		if err := s.Activities.Create(txCtx, activity); err != nil {
			return nil, fmt.Errorf("failed to schedule approval: %w", err)
		}

		if err := s.post(txCtx, sheet.ID, actor, "Expense report submitted."); err != nil {
			return nil, err
		}
		return sheetEvent(event.TypeSheetSubmitted, sheet, actor, &responsible), nil
	})
	if err != nil {
		s.logger.Error("Failed to submit expense reports", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Expense reports submitted", "sheet_ids", sheetIDs, "user_id", actor.ID)
	return sheets, nil
}

// approver picks who reviews a sheet: the area manager, else the employee's manager, else the caller
func (r *records) approver(ctx context.Context, actor *entity.User, sheet *entity.ExpenseSheet) (int64, error) {
	if sheet.AreaManagerID != nil {
		return *sheet.AreaManagerID, nil
	}
	employee, err := r.employee(ctx, sheet.EmployeeID)
	if err != nil {
		return 0, err
	}
	if employee.ManagerUserID != nil {
		return *employee.ManagerUserID, nil
	}
	return actor.ID, nil
}

// Approve accepts submitted sheets. Lines that look like already approved expenses
// block the approval unless force is set.
func (s *approvalServiceImpl) Approve(ctx context.Context, actor *entity.User, sheetIDs []int64, force bool) ([]*entity.ExpenseSheet, error) {
	if err := requireGroup(actor, entity.GroupAccountant, "Only users with rol Accountant, can Approve this expense"); err != nil {
		return nil, err
	}

	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if len(sheet.Lines) == 0 {
			return nil, expense.Userf(emptySheetMessage)
		}
		if !force {
			if err := s.checkDuplicates(txCtx, sheet); err != nil {
				return nil, err
			}
		}

		refusal := fmt.Sprintf("You can only approve submitted expense reports: %q is not submitted.", sheet.Name)
		if err := transition(txCtx, sheet, domainwf.TriggerApprove, refusal); err != nil {
			return nil, err
		}
		sheet.ApprovedByID = &actor.ID
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}

		if err := s.Activities.MarkDone(txCtx, sheet.ID, entity.ActivityTypeApproval, s.now()); err != nil {
			return nil, fmt.Errorf("failed to close approval activity: %w", err)
		}
		if err := s.post(txCtx, sheet.ID, actor, "Expense report approved."); err != nil {
			return nil, err
		}

		employee, err := s.employee(txCtx, sheet.EmployeeID)
		if err != nil {
			return nil, err
		}
		return sheetEvent(event.TypeSheetApproved, sheet, actor, employee.UserID), nil
	})
	if err != nil {
		s.logger.Error("Failed to approve expense reports", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Expense reports approved", "sheet_ids", sheetIDs, "user_id", actor.ID, "force", force)
	return sheets, nil
}

// checkDuplicates fails when a line matches an already approved line of another sheet.
// A settlement never conflicts with the advance it was copied from.
func (r *records) checkDuplicates(ctx context.Context, sheet *entity.ExpenseSheet) error {
	approved, err := r.Expenses.ListByEmployeeAndStates(ctx, sheet.EmployeeID,
		[]string{entity.ExpenseStateApproved, entity.ExpenseStateDone})
	if err != nil {
		return fmt.Errorf("failed to load approved expenses: %w", err)
	}

	var names []string
	for _, l := range sheet.Lines {
		for _, other := range approved {
			if other.SheetID != nil && (*other.SheetID == sheet.ID || sameSheet(other.SheetID, sheet.OriginalSheetID)) {
				continue
			}
			if expense.IsDuplicate(l, other) {
				names = append(names, l.Name)
				break
			}
		}
	}
	if len(names) > 0 {
		return expense.Userf("The following expenses look like duplicates of already approved expenses: %s. Approve with force to proceed anyway.",
			strings.Join(names, ", "))
	}
	return nil
}

// Refuse cancels sheets and records the reason in their chatter
func (s *approvalServiceImpl) Refuse(ctx context.Context, actor *entity.User, sheetIDs []int64, reason string) ([]*entity.ExpenseSheet, error) {
	if err := requireGroup(actor, entity.GroupAccountant, "Only users with rol Accountant, can Refuse this expense"); err != nil {
		return nil, err
	}

	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		refusal := fmt.Sprintf("You cannot refuse the expense report %q in its current state.", sheet.Name)
		if err := transition(txCtx, sheet, domainwf.TriggerRefuse, refusal); err != nil {
			return nil, err
		}
		for _, m := range sheet.Moves {
			if err := s.deleteDraftMove(txCtx, m); err != nil {
				return nil, err
			}
		}
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}

		if err := s.Activities.DeleteOpen(txCtx, sheet.ID, entity.ActivityTypeApproval); err != nil {
			return nil, fmt.Errorf("failed to remove activities: %w", err)
		}
		body := "Expense report refused."
		if reason != "" {
			body = fmt.Sprintf("Expense report refused. Reason: %s", reason)
		}
		if err := s.post(txCtx, sheet.ID, actor, body); err != nil {
			return nil, err
		}

		employee, err := s.employee(txCtx, sheet.EmployeeID)
		if err != nil {
			return nil, err
		}
		return sheetEvent(event.TypeSheetRefused, sheet, actor, employee.UserID).WithPayload("reason", reason), nil
	})
	if err != nil {
		s.logger.Error("Failed to refuse expense reports", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Expense reports refused", "sheet_ids", sheetIDs, "user_id", actor.ID)
	return sheets, nil
}

// Reset brings sheets back to draft, reversing posted entries and dropping draft ones
func (s *approvalServiceImpl) Reset(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error) {
	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if sheet.ApprovalState != entity.ApprovalNone && sheet.ApprovalState != entity.ApprovalSubmit {
			if err := requireGroup(actor, entity.GroupAccountant, "Only users with rol Accountant, can reset an approved or refused expense report"); err != nil {
				return nil, err
			}
		}

		refusal := fmt.Sprintf("The expense report %q is already a draft.", sheet.Name)
		if err := transition(txCtx, sheet, domainwf.TriggerReset, refusal); err != nil {
			return nil, err
		}
		for _, m := range sheet.Moves {
			if m.IsDraft() {
				if err := s.deleteDraftMove(txCtx, m); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := s.reverseMove(txCtx, m); err != nil {
				return nil, err
			}
		}
		sheet.ApprovedByID = nil
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}

		if err := s.Activities.DeleteOpen(txCtx, sheet.ID, entity.ActivityTypeApproval); err != nil {
			return nil, fmt.Errorf("failed to remove activities: %w", err)
		}
		if err := s.post(txCtx, sheet.ID, actor, "Expense report reset to draft."); err != nil {
			return nil, err
		}

		employee, err := s.employee(txCtx, sheet.EmployeeID)
		if err != nil {
			return nil, err
		}
		return sheetEvent(event.TypeSheetReset, sheet, actor, employee.UserID), nil
	})
	if err != nil {
		s.logger.Error("Failed to reset expense reports", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Expense reports reset", "sheet_ids", sheetIDs, "user_id", actor.ID)
	return sheets, nil
}

func sameSheet(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}
