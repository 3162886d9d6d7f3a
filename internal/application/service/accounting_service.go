package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// PaymentRequest describes a payment registered on posted expense reports
type PaymentRequest struct {
	SheetIDs  []int64
	JournalID int64
	// Amount caps the total paid; nil pays every residual in full
	Amount *decimal.Decimal
	Date   *time.Time
}

// AccountingService turns approved expense reports into journal entries and payments
type AccountingService interface {
	CreateMoves(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error)
	Post(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error)
	RegisterPayment(ctx context.Context, actor *entity.User, req PaymentRequest) ([]*entity.Payment, error)
}

type accountingServiceImpl struct {
	records
	publisher Publisher
	logger    Logger
}

// NewAccountingService creates a new AccountingService
func NewAccountingService(stores Stores, publisher Publisher, clock Clock, logger Logger) AccountingService {
	return &accountingServiceImpl{
		records:   newRecords(stores, clock),
		publisher: publisher,
		logger:    logger,
	}
}

// CreateMoves generates the draft documents of approved sheets
func (s *accountingServiceImpl) CreateMoves(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error) {
	if err := requireGroup(actor, entity.GroupAccountant, "Only users with rol Accountant, can create journal entries"); err != nil {
		return nil, err
	}

	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if sheet.State != entity.SheetStateApprove || len(sheet.Moves) > 0 {
			return nil, expense.Userf("You can only generate accounting entries for approved expense reports without entries: %q.", sheet.Name)
		}
		if _, err := s.createMoves(txCtx, sheet); err != nil {
			return nil, err
		}
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		return nil, s.post(txCtx, sheet.ID, actor, "Accounting entries created.")
	})
	if err != nil {
		s.logger.Error("Failed to create accounting entries", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Accounting entries created", "sheet_ids", sheetIDs, "user_id", actor.ID)
	return sheets, nil
}

// Post creates missing documents and posts every draft document of approved sheets
func (s *accountingServiceImpl) Post(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error) {
	if err := requireGroup(actor, entity.GroupAccountant, "Only users with rol Accountant, can post journal entries"); err != nil {
		return nil, err
	}

	sheets, err := s.batch(ctx, actor, sheetIDs, s.publisher, func(txCtx context.Context, sheet *entity.ExpenseSheet) (*event.Event, error) {
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if sheet.State != entity.SheetStateApprove {
			return nil, expense.Userf("You can only post approved expense reports: %q.", sheet.Name)
		}

		moves := sheet.Moves
		if len(moves) == 0 {
			created, err := s.createMoves(txCtx, sheet)
			if err != nil {
				return nil, err
			}
			moves = created
		}
		for _, m := range moves {
			if err := s.postMove(txCtx, m); err != nil {
				return nil, err
			}
		}
		if err := s.refresh(txCtx, sheet); err != nil {
			return nil, err
		}
		if err := s.post(txCtx, sheet.ID, actor, "Journal entries posted."); err != nil {
			return nil, err
		}

		employee, err := s.employee(txCtx, sheet.EmployeeID)
		if err != nil {
			return nil, err
		}
		return sheetEvent(event.TypeSheetPosted, sheet, actor, employee.UserID), nil
	})
	if err != nil {
		s.logger.Error("Failed to post expense reports", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.logger.Info("Expense reports posted", "sheet_ids", sheetIDs, "user_id", actor.ID)
	return sheets, nil
}

// RegisterPayment pays the open invoices of posted sheets, in sheet order, until the amount runs out
func (s *accountingServiceImpl) RegisterPayment(ctx context.Context, actor *entity.User, req PaymentRequest) ([]*entity.Payment, error) {
	if err := requireGroup(actor, entity.GroupTreasury, "Only users with rol Treasury, can register payments"); err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, expense.Validationf("The payment amount must be strictly positive.")
	}

	var (
		payments []*entity.Payment
		events   []*event.Event
	)
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		payments, events = nil, nil

		journal, err := s.journal(txCtx, req.JournalID)
		if err != nil {
			return err
		}
		if journal.Type != entity.JournalBank && journal.Type != entity.JournalCash {
			return expense.Userf("Payments can only be registered on a bank or cash journal, not on %s.", journal.Name)
		}
		date := s.today()
		if req.Date != nil {
			date = expense.DateOnly(*req.Date)
		}

		sheets, err := s.loadSheets(txCtx, actor, req.SheetIDs)
		if err != nil {
			return err
		}

		due := decimal.Zero
		for _, sheet := range sheets {
			if err := s.refresh(txCtx, sheet); err != nil {
				return err
			}
			if sheet.State != entity.SheetStatePost {
				return expense.Userf("You can only register payments for posted expense reports: %q.", sheet.Name)
			}
			for _, m := range openInvoices(sheet) {
				due = due.Add(m.AmountResidual)
			}
		}
		if !due.IsPositive() {
			return expense.Userf("There is nothing left to pay on the selected expense reports.")
		}
		remaining := due
		if req.Amount != nil {
			if req.Amount.GreaterThan(due) {
				return expense.Validationf("The payment amount %s exceeds the amount due %s.", req.Amount.StringFixed(2), due.StringFixed(2))
			}
			remaining = *req.Amount
		}

		for _, sheet := range sheets {
			if !remaining.IsPositive() {
				break
			}
			mc, err := s.loadMoveContext(txCtx, sheet)
			if err != nil {
				return err
			}

			paid := decimal.Zero
			for _, invoice := range openInvoices(sheet) {
				if !remaining.IsPositive() {
					break
				}
				amount := decimal.Min(invoice.AmountResidual, remaining)
				payment, err := s.payInvoice(txCtx, mc, invoice, journal, amount, date)
				if err != nil {
					return err
				}
				payments = append(payments, payment)
				remaining = remaining.Sub(amount)
				paid = paid.Add(amount)
			}
			if paid.IsZero() {
				continue
			}

			if err := s.refresh(txCtx, sheet); err != nil {
				return err
			}
			msg := fmt.Sprintf("Payment of %s %s registered on %s.", paid.StringFixed(2), mc.company.Currency, journal.Name)
			if err := s.post(txCtx, sheet.ID, actor, msg); err != nil {
				return err
			}
			evt := sheetEvent(event.TypeSheetPaid, sheet, actor, mc.employee.UserID).
				WithPayload("amount", paid.StringFixed(2))
			events = append(events, evt)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to register payment", "error", err, "sheet_ids", req.SheetIDs)
		return nil, err
	}

	s.publish(ctx, s.publisher, events)
	s.logger.Info("Payment registered", "sheet_ids", req.SheetIDs, "payments", len(payments), "user_id", actor.ID)
	return payments, nil
}

// openInvoices returns the posted invoices of a sheet that still have something to pay
func openInvoices(sheet *entity.ExpenseSheet) []*entity.Move {
	var open []*entity.Move
	for _, m := range sheet.Moves {
		if m.IsInvoice() && m.State == entity.MoveStatePosted && m.AmountResidual.IsPositive() {
			open = append(open, m)
		}
	}
	return open
}
