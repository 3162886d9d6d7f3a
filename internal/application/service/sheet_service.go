package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// SheetInput carries the editable fields of an expense report. Nil fields are left unchanged.
type SheetInput struct {
	Name           *string
	EmployeeID     *int64
	AreaManagerID  *int64
	ProviderID     *int64
	JournalID      *int64
	AccountingDate *time.Time

	Destination   *string
	Justification *string
	Overnight     *bool
	DateSince     *time.Time
	DateUp        *time.Time
	TicketType    *string
	FlightDate    *time.Time
	Airline       *string
	Route         *string
	Flight        *string

	// ExpenseIDs are attached on creation
	ExpenseIDs []int64
}

func (in SheetInput) apply(s *entity.ExpenseSheet) {
	if in.Name != nil {
		s.Name = *in.Name
	}
	if in.AreaManagerID != nil {
		s.AreaManagerID = in.AreaManagerID
	}
	if in.ProviderID != nil {
		s.ProviderID = in.ProviderID
	}
	if in.JournalID != nil {
		s.JournalID = in.JournalID
	}
	if in.AccountingDate != nil {
		s.AccountingDate = in.AccountingDate
	}
	if in.Destination != nil {
		s.Destination = *in.Destination
	}
	if in.Justification != nil {
		s.Justification = *in.Justification
	}
	if in.Overnight != nil {
		s.Overnight = *in.Overnight
	}
	if in.DateSince != nil {
		s.DateSince = in.DateSince
	}
	if in.DateUp != nil {
		s.DateUp = in.DateUp
	}
	if in.TicketType != nil {
		s.TicketType = *in.TicketType
	}
	if in.FlightDate != nil {
		s.FlightDate = in.FlightDate
	}
	if in.Airline != nil {
		s.Airline = *in.Airline
	}
	if in.Route != nil {
		s.Route = *in.Route
	}
	if in.Flight != nil {
		s.Flight = *in.Flight
	}
}

// SheetService manages expense reports and their lines
type SheetService interface {
	Create(ctx context.Context, actor *entity.User, in SheetInput) (*entity.ExpenseSheet, error)
	Get(ctx context.Context, actor *entity.User, id int64) (*entity.ExpenseSheet, error)
	List(ctx context.Context, actor *entity.User, filter entity.SheetFilter) ([]*entity.ExpenseSheet, error)
	Update(ctx context.Context, actor *entity.User, id int64, in SheetInput) (*entity.ExpenseSheet, error)
	Delete(ctx context.Context, actor *entity.User, id int64) error
	AddLines(ctx context.Context, actor *entity.User, id int64, expenseIDs []int64) (*entity.ExpenseSheet, error)
	RemoveLines(ctx context.Context, actor *entity.User, id int64, expenseIDs []int64) (*entity.ExpenseSheet, error)
	Messages(ctx context.Context, actor *entity.User, id int64) ([]*entity.Message, error)
	Moves(ctx context.Context, actor *entity.User, id int64) ([]*entity.Move, error)
	Activities(ctx context.Context, actor *entity.User, id int64) ([]*entity.Activity, error)
}

type sheetServiceImpl struct {
	records
	logger Logger
}

// NewSheetService creates a new SheetService
func NewSheetService(stores Stores, clock Clock, logger Logger) SheetService {
	return &sheetServiceImpl{
		records: newRecords(stores, clock),
		logger:  logger,
	}
}

// Create opens a draft expense report, optionally with lines
func (s *sheetServiceImpl) Create(ctx context.Context, actor *entity.User, in SheetInput) (*entity.ExpenseSheet, error) {
	var sheet *entity.ExpenseSheet
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		employee, err := s.resolveEmployee(txCtx, actor, in.EmployeeID)
		if err != nil {
			return err
		}

		sheet = &entity.ExpenseSheet{
			CompanyID:     employee.CompanyID,
			EmployeeID:    employee.ID,
			Department:    employee.Department,
			CreatedByID:   &actor.ID,
			PaymentMode:   entity.PaymentModeOwnAccount,
			ApprovalState: entity.ApprovalNone,
			State:         entity.SheetStateDraft,
			PaymentState:  entity.PaymentStateNotPaid,
		}
		in.apply(sheet)
		if err := expense.ValidateSheetTravel(sheet); err != nil {
			return err
		}
		sheet.ClearFlightDetails()

		if err := s.Sheets.Create(txCtx, sheet); err != nil {
			return fmt.Errorf("failed to create expense report: %w", err)
		}
		if len(in.ExpenseIDs) > 0 {
			if err := s.attach(txCtx, sheet, in.ExpenseIDs); err != nil {
				return err
			}
		}
		return s.refresh(txCtx, sheet)
	})
	if err != nil {
		s.logger.Error("Failed to create expense report", "error", err, "user_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Expense report created", "id", sheet.ID, "name", sheet.Name)
	return sheet, nil
}

// resolveEmployee returns the requested employee, the caller's by default
func (r *records) resolveEmployee(ctx context.Context, actor *entity.User, id *int64) (*entity.Employee, error) {
	if id == nil {
		return r.actorEmployee(ctx, actor)
	}
	employee, err := r.employee(ctx, *id)
	if err != nil {
		return nil, err
	}
	if !canAccessEmployee(actor, employee) {
		return nil, expense.Accessf("You cannot manage the expenses of %s.", employee.Name)
	}
	return employee, nil
}

// Get returns a sheet with its lines and moves
func (s *sheetServiceImpl) Get(ctx context.Context, actor *entity.User, id int64) (*entity.ExpenseSheet, error) {
	sheet, err := s.loadSheet(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sheet.Lines, err = s.Expenses.ListBySheet(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load expense lines: %w", err)
	}
	if sheet.Moves, err = s.Stores.Moves.ListBySheet(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load moves: %w", err)
	}
	return sheet, nil
}

// List returns the sheets visible to the caller. Users without an accounting group only see their own.
func (s *sheetServiceImpl) List(ctx context.Context, actor *entity.User, filter entity.SheetFilter) ([]*entity.ExpenseSheet, error) {
	if !privileged(actor) {
		employee, err := s.actorEmployee(ctx, actor)
		if err != nil {
			return []*entity.ExpenseSheet{}, nil
		}
		filter.EmployeeID = &employee.ID
	}

	sheets, err := s.Sheets.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list expense reports", "error", err)
		return nil, err
	}
	return sheets, nil
}

// Update changes the travel request of a draft or submitted sheet
func (s *sheetServiceImpl) Update(ctx context.Context, actor *entity.User, id int64, in SheetInput) (*entity.ExpenseSheet, error) {
	var sheet *entity.ExpenseSheet
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if sheet, err = s.loadSheet(txCtx, actor, id); err != nil {
			return err
		}
		if sheet.State != entity.SheetStateDraft && sheet.State != entity.SheetStateSubmit {
			return expense.Userf("You cannot modify the expense report %q once it is approved.", sheet.Name)
		}

		in.apply(sheet)
		if err := expense.ValidateSheetTravel(sheet); err != nil {
			return err
		}
		sheet.ClearFlightDetails()
		return s.refresh(txCtx, sheet)
	})
	if err != nil {
		s.logger.Error("Failed to update expense report", "error", err, "id", id)
		return nil, err
	}
	return sheet, nil
}

// Delete removes a draft or refused sheet; its lines go back to draft
func (s *sheetServiceImpl) Delete(ctx context.Context, actor *entity.User, id int64) error {
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		sheet, err := s.loadSheet(txCtx, actor, id)
		if err != nil {
			return err
		}
		if sheet.State != entity.SheetStateDraft && sheet.State != entity.SheetStateCancel {
			return expense.Userf("You cannot delete a posted or approved expense report.")
		}
		if sheet.SettlementSheetID != nil {
			return expense.Userf("You cannot delete the advance %q because it has a settlement.", sheet.Name)
		}

		if err := s.Expenses.UpdateStateBySheet(txCtx, id, entity.ExpenseStateDraft); err != nil {
			return fmt.Errorf("failed to reset expense lines: %w", err)
		}
		if err := s.Sheets.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete expense report: %w", err)
		}

		// the advance goes back to pending once its settlement is gone
		if sheet.OriginalSheetID != nil {
			advance, err := s.Sheets.GetByID(txCtx, *sheet.OriginalSheetID)
			if err != nil {
				return fmt.Errorf("failed to load advance: %w", err)
			}
			if advance != nil {
				advance.SettlementSheetID = nil
				return s.refresh(txCtx, advance)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete expense report", "error", err, "id", id)
		return err
	}

	s.logger.Info("Expense report deleted", "id", id)
	return nil
}

func (r *records) checkLinesEditable(actor *entity.User, sheet *entity.ExpenseSheet) error {
	if sheet.State == entity.SheetStateDraft || sheet.State == entity.SheetStateSubmit {
		return nil
	}
	return requireGroup(actor, entity.GroupAccountUser,
		"You do not have the rights to add or remove any expenses on an approved or paid expense report.")
}

// AddLines attaches unreported expenses to a sheet
func (s *sheetServiceImpl) AddLines(ctx context.Context, actor *entity.User, id int64, expenseIDs []int64) (*entity.ExpenseSheet, error) {
	var sheet *entity.ExpenseSheet
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if sheet, err = s.loadSheet(txCtx, actor, id); err != nil {
			return err
		}
		if err := s.checkLinesEditable(actor, sheet); err != nil {
			return err
		}
		if err := s.attach(txCtx, sheet, expenseIDs); err != nil {
			return err
		}
		return s.refresh(txCtx, sheet)
	})
	if err != nil {
		s.logger.Error("Failed to add expense lines", "error", err, "id", id)
		return nil, err
	}
	return sheet, nil
}

// attach links unreported expenses of the sheet's employee to the sheet
func (r *records) attach(ctx context.Context, sheet *entity.ExpenseSheet, expenseIDs []int64) error {
	if err := distinctIDs(expenseIDs, "expense"); err != nil {
		return err
	}
	lines, err := r.Expenses.GetByIDs(ctx, expenseIDs)
	if err != nil {
		return fmt.Errorf("failed to load expenses: %w", err)
	}
	if len(lines) != len(expenseIDs) {
		return expense.NotFoundf("Some of the selected expenses do not exist.")
	}
	for _, l := range lines {
		if l.IsReported() || l.State != entity.ExpenseStateDraft {
			return expense.Userf("You cannot report twice the same line!")
		}
		if l.EmployeeID != sheet.EmployeeID {
			return expense.Userf("You cannot report expenses for different employees in the same report.")
		}
	}

	current, err := r.Expenses.ListBySheet(ctx, sheet.ID)
	if err != nil {
		return fmt.Errorf("failed to load expense lines: %w", err)
	}
	all := append(current, lines...)
	if err := expense.CheckSameCompany(sheet.CompanyID, all); err != nil {
		return err
	}
	if err := expense.CheckPaymentModes(all); err != nil {
		return err
	}
	if err := expense.CheckPaymentAccountModes(all); err != nil {
		return err
	}

	if err := r.Expenses.SetSheet(ctx, expenseIDs, &sheet.ID); err != nil {
		return fmt.Errorf("failed to attach expenses: %w", err)
	}
	return nil
}

// RemoveLines detaches expenses from a sheet and puts them back to draft
func (s *sheetServiceImpl) RemoveLines(ctx context.Context, actor *entity.User, id int64, expenseIDs []int64) (*entity.ExpenseSheet, error) {
	var sheet *entity.ExpenseSheet
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if sheet, err = s.loadSheet(txCtx, actor, id); err != nil {
			return err
		}
		if err := s.checkLinesEditable(actor, sheet); err != nil {
			return err
		}

		current, err := s.Expenses.ListBySheet(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load expense lines: %w", err)
		}
		remove := make(map[int64]bool, len(expenseIDs))
		for _, eid := range expenseIDs {
			remove[eid] = true
		}
		var removed []*entity.Expense
		for _, l := range current {
			if remove[l.ID] {
				removed = append(removed, l)
			}
		}
		if len(removed) != len(remove) {
			return expense.NotFoundf("Some of the selected expenses are not part of the expense report %q.", sheet.Name)
		}
		if len(removed) == len(current) && sheet.State != entity.SheetStateDraft {
			return expense.Userf("You cannot remove all expenses from a submitted expense report.")
		}

		for _, l := range removed {
			l.SheetID = nil
			l.State = entity.ExpenseStateDraft
			if err := s.Expenses.Update(txCtx, l); err != nil {
				return fmt.Errorf("failed to detach expense: %w", err)
			}
		}
		return s.refresh(txCtx, sheet)
	})
	if err != nil {
		s.logger.Error("Failed to remove expense lines", "error", err, "id", id)
		return nil, err
	}
	return sheet, nil
}

// Messages returns the chatter of a sheet
func (s *sheetServiceImpl) Messages(ctx context.Context, actor *entity.User, id int64) ([]*entity.Message, error) {
	if _, err := s.loadSheet(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Stores.Messages.ListByRecord(ctx, entity.ModelSheet, id)
}

// Moves returns the accounting documents of a sheet
func (s *sheetServiceImpl) Moves(ctx context.Context, actor *entity.User, id int64) ([]*entity.Move, error) {
	if _, err := s.loadSheet(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Stores.Moves.ListBySheet(ctx, id)
}

// Activities returns the to-dos scheduled on a sheet
func (s *sheetServiceImpl) Activities(ctx context.Context, actor *entity.User, id int64) ([]*entity.Activity, error) {
	if _, err := s.loadSheet(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Stores.Activities.ListBySheet(ctx, id)
}
