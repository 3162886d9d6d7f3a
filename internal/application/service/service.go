package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-expense/internal/application/port"
	appwf "github.com/garyjia/travel-expense/internal/application/workflow"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
	domainwf "github.com/garyjia/travel-expense/internal/domain/workflow"
)

// Publisher hands committed domain events to their handlers
type Publisher interface {
	Publish(ctx context.Context, events []*event.Event)
}

// Stores groups the repositories shared by the expense services
type Stores struct {
	Expenses   port.ExpenseRepository
	Sheets     port.SheetRepository
	Moves      port.MoveRepository
	Payments   port.PaymentRepository
	Catalog    port.CatalogRepository
	Messages   port.MessageRepository
	Activities port.ActivityRepository
	Reports    port.LiquidationReportRepository
	Tx         port.TransactionManager
}

// Clock returns the current time
type Clock func() time.Time

// privileged users see every employee's records
func privileged(actor *entity.User) bool {
	return actor.HasGroup(entity.GroupAccountant) ||
		actor.HasGroup(entity.GroupTreasury) ||
		actor.HasGroup(entity.GroupAccountUser)
}

func requireGroup(actor *entity.User, group, msg string) error {
	if !actor.HasGroup(group) {
		return expense.Accessf("%s", msg)
	}
	return nil
}

// records bundles the lookups and recomputations every service needs
type records struct {
	Stores
	now Clock
}

func newRecords(stores Stores, clock Clock) records {
	if clock == nil {
		clock = time.Now
	}
	return records{Stores: stores, now: clock}
}

func (r *records) today() time.Time {
	return expense.DateOnly(r.now())
}

func (r *records) employee(ctx context.Context, id int64) (*entity.Employee, error) {
	employee, err := r.Catalog.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if employee == nil {
		return nil, expense.NotFoundf("Employee %d not found.", id)
	}
	return employee, nil
}

func (r *records) company(ctx context.Context, id int64) (*entity.Company, error) {
	company, err := r.Catalog.GetCompany(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, expense.NotFoundf("Company %d not found.", id)
	}
	return company, nil
}

func (r *records) journal(ctx context.Context, id int64) (*entity.Journal, error) {
	journal, err := r.Catalog.GetJournal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	if journal == nil {
		return nil, expense.NotFoundf("Journal %d not found.", id)
	}
	return journal, nil
}

// actorEmployee returns the employee record of the caller
func (r *records) actorEmployee(ctx context.Context, actor *entity.User) (*entity.Employee, error) {
	employee, err := r.Catalog.GetEmployeeByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if employee == nil {
		return nil, expense.Userf("The user %q is not linked to an employee.", actor.Login)
	}
	return employee, nil
}

// canAccessEmployee tells whether actor may read the records of an employee
func canAccessEmployee(actor *entity.User, employee *entity.Employee) bool {
	if privileged(actor) {
		return true
	}
	if employee.UserID != nil && *employee.UserID == actor.ID {
		return true
	}
	return employee.ManagerUserID != nil && *employee.ManagerUserID == actor.ID
}

// loadSheet fetches a sheet the actor may access
func (r *records) loadSheet(ctx context.Context, actor *entity.User, id int64) (*entity.ExpenseSheet, error) {
	sheet, err := r.Sheets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense report: %w", err)
	}
	if sheet == nil {
		return nil, expense.NotFoundf("Expense report %d not found.", id)
	}

	if sheet.AreaManagerID != nil && *sheet.AreaManagerID == actor.ID {
		return sheet, nil
	}
	employee, err := r.employee(ctx, sheet.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !canAccessEmployee(actor, employee) {
		return nil, expense.NotFoundf("Expense report %d not found.", id)
	}
	return sheet, nil
}

// loadSheets fetches a batch of sheets, in the given order
func (r *records) loadSheets(ctx context.Context, actor *entity.User, ids []int64) ([]*entity.ExpenseSheet, error) {
	if len(ids) == 0 {
		return nil, expense.Validationf("No expense report selected.")
	}
	if err := distinctIDs(ids, "expense report"); err != nil {
		return nil, err
	}
	sheets := make([]*entity.ExpenseSheet, 0, len(ids))
	for _, id := range ids {
		sheet, err := r.loadSheet(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// distinctIDs rejects a selection that names the same record twice
func distinctIDs(ids []int64, what string) error {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return expense.Validationf("The %s %d is selected more than once.", what, id)
		}
		seen[id] = true
	}
	return nil
}

// refresh recomputes every derived field of a sheet and its lines, then saves them.
// Lines and moves are left loaded on the sheet.
func (r *records) refresh(ctx context.Context, sheet *entity.ExpenseSheet) error {
	lines, err := r.Expenses.ListBySheet(ctx, sheet.ID)
	if err != nil {
		return fmt.Errorf("failed to load expense lines: %w", err)
	}
	moves, err := r.Moves.ListBySheet(ctx, sheet.ID)
	if err != nil {
		return fmt.Errorf("failed to load moves: %w", err)
	}

	if len(lines) > 0 {
		sheet.PaymentMode = lines[0].PaymentMode
	}
	sheet.TotalAmount = expense.SheetTotal(lines)
	paymentMode := sheet.PaymentMode
	if sheet.IsLiquidation {
		// settlements are collected or refunded through their own invoice or bill
		paymentMode = entity.PaymentModeOwnAccount
	}
	sheet.PaymentState, sheet.AmountResidual = expense.DerivePaymentState(paymentMode, moves)
	sheet.State = expense.DeriveSheetState(len(lines), sheet.ApprovalState, moves, sheet.PaymentState)
	sheet.TotalVerified, sheet.Refund = expense.LiquidationTotals(sheet.IsLiquidation, sheet.TotalAmount, lines)
	sheet.LiquidationStatus = expense.LiquidationStatus(sheet.SettlementSheetID)
	if sheet.NumberDays, err = expense.NumberOfDays(sheet.DateSince, sheet.DateUp); err != nil {
		return err
	}

	if err := r.Sheets.Update(ctx, sheet); err != nil {
		return fmt.Errorf("failed to save expense report: %w", err)
	}

	state := expense.DeriveExpenseState(sheet, len(moves) > 0)
	if err := r.Expenses.UpdateStateBySheet(ctx, sheet.ID, state); err != nil {
		return fmt.Errorf("failed to save expense states: %w", err)
	}
	for _, l := range lines {
		l.State = state
	}

	sheet.Lines = lines
	sheet.Moves = moves
	return nil
}

// post appends a chatter message to a sheet
func (r *records) post(ctx context.Context, sheetID int64, actor *entity.User, body string) error {
	msg := &entity.Message{
		ResModel: entity.ModelSheet,
		ResID:    sheetID,
		Body:     body,
		Subtype:  entity.MessageNote,
	}
	if actor != nil {
		msg.AuthorID = &actor.ID
	}
	if err := r.Messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// transition fires a workflow trigger on a sheet and stores the resulting approval state
func transition(ctx context.Context, sheet *entity.ExpenseSheet, trigger domainwf.Trigger, refusal string) error {
	guards := appwf.ApprovalGuards{
		HasLines: func(context.Context) error {
			if len(sheet.Lines) == 0 {
				return expense.Userf(emptySheetMessage)
			}
			return nil
		},
		NoPostedMoves: func(context.Context) error {
			for _, m := range sheet.Moves {
				if !m.IsDraft() {
					return expense.Userf(postedMoveMessage)
				}
			}
			return nil
		},
	}
	machine := appwf.BuildApprovalStateMachine(appwf.StateFromApproval(sheet.ApprovalState), guards)
	if err := machine.Fire(ctx, trigger); err != nil {
		var reason *expense.Error
		if errors.As(err, &reason) {
			return reason
		}
		if errors.Is(err, domainwf.ErrInvalidTransition) || errors.Is(err, domainwf.ErrGuardFailed) {
			return expense.Userf("%s", refusal)
		}
		return err
	}
	sheet.ApprovalState = appwf.ApprovalFromState(machine.State())
	return nil
}

// publish hands events to the publisher once the enclosing transaction, if any, commits
func (r *records) publish(ctx context.Context, publisher Publisher, events []*event.Event) {
	if publisher == nil || len(events) == 0 {
		return
	}
	r.Tx.AfterCommit(ctx, func(ctx context.Context) {
		publisher.Publish(ctx, events)
	})
}

func sheetEvent(typ event.Type, sheet *entity.ExpenseSheet, actor *entity.User, notify *int64) *event.Event {
	payload := map[string]interface{}{
		"sheet_name": sheet.Name,
		"state":      sheet.State,
	}
	if notify != nil {
		payload["notify_user_id"] = *notify
	}
	return event.NewEvent(typ, sheet.ID, actor.ID, payload)
}
