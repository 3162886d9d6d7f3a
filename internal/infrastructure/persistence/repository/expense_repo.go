package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
)

const expenseColumns = `
	id, company_id, employee_id, sheet_id, name, description, date,
	category_id, account_id, tax_ids, total_amount, currency,
	payment_mode, payment_account_mode, area_manager_id, vendor_id, analytic_distribution,
	travel_destination, trip_justification, expense_amount, ticket_amount,
	transport_type, travel_date, duration_days,
	real_expense, checked, verified_total, proof_path, proof_filename, proof_mime,
	state, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense line
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			company_id, employee_id, sheet_id, name, description, date,
			category_id, account_id, tax_ids, total_amount, currency,
			payment_mode, payment_account_mode, area_manager_id, vendor_id, analytic_distribution,
			travel_destination, trip_justification, expense_amount, ticket_amount,
			transport_type, travel_date, duration_days,
			real_expense, checked, verified_total, proof_path, proof_filename, proof_mime,
			state, created_at, updated_at
		) VALUES (` + placeholders(32) + `)
	`

	taxIDs, err := encodeIDs(expense.TaxIDs)
	if err != nil {
		return err
	}
	distribution, err := encodeDistribution(expense.AnalyticDistribution)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		expense.CompanyID,
		expense.EmployeeID,
		expense.SheetID,
		expense.Name,
		nullString(expense.Description),
		expense.Date,
		expense.CategoryID,
		expense.AccountID,
		taxIDs,
		expense.TotalAmount,
		expense.Currency,
		expense.PaymentMode,
		expense.PaymentAccountMode,
		expense.AreaManagerID,
		expense.VendorID,
		distribution,
		nullString(expense.TravelDestination),
		nullString(expense.TripJustification),
		expense.ExpenseAmount,
		expense.TicketAmount,
		nullString(expense.TransportType),
		expense.TravelDate,
		expense.DurationDays,
		expense.RealExpense,
		expense.Checked,
		expense.VerifiedTotal,
		nullString(expense.ProofPath),
		nullString(expense.ProofFilename),
		nullString(expense.ProofMime),
		expense.State,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.Int64("employee_id", expense.EmployeeID),
			zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	expense.CreatedAt = now
	expense.UpdatedAt = now
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// GetByIDs retrieves the expenses with the given IDs, ordered by ID.
// Unknown IDs are silently skipped.
func (r *ExpenseRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Expense, error) {
	if len(ids) == 0 {
		return []*entity.Expense{}, nil
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	return r.query(ctx, "get expenses by IDs", query, int64Args(ids)...)
}

// List retrieves expenses matching the filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE 1 = 1`
	var args []interface{}

	if filter.EmployeeID != nil {
		query += ` AND employee_id = ?`
		args = append(args, *filter.EmployeeID)
	}
	if filter.SheetID != nil {
		query += ` AND sheet_id = ?`
		args = append(args, *filter.SheetID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}

	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.query(ctx, "list expenses", query, args...)
}

// ListBySheet retrieves the lines of a sheet in insertion order
func (r *ExpenseRepository) ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE sheet_id = ? ORDER BY id`
	return r.query(ctx, "list sheet expenses", query, sheetID)
}

// ListByEmployeeAndStates retrieves an employee's expenses in any of the given states
func (r *ExpenseRepository) ListByEmployeeAndStates(ctx context.Context, employeeID int64, states []string) ([]*entity.Expense, error) {
	if len(states) == 0 {
		return []*entity.Expense{}, nil
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE employee_id = ? AND state IN (` + placeholders(len(states)) + `) ORDER BY id`
	args := append([]interface{}{employeeID}, stringArgs(states)...)
	return r.query(ctx, "list employee expenses", query, args...)
}

// Update saves every mutable column of an expense
func (r *ExpenseRepository) Update(ctx context.Context, expense *entity.Expense) error {
	query := `
		UPDATE expenses SET
			company_id = ?, employee_id = ?, sheet_id = ?, name = ?, description = ?, date = ?,
			category_id = ?, account_id = ?, tax_ids = ?, total_amount = ?, currency = ?,
			payment_mode = ?, payment_account_mode = ?, area_manager_id = ?, vendor_id = ?,
			analytic_distribution = ?,
			travel_destination = ?, trip_justification = ?, expense_amount = ?, ticket_amount = ?,
			transport_type = ?, travel_date = ?, duration_days = ?,
			real_expense = ?, checked = ?, verified_total = ?,
			proof_path = ?, proof_filename = ?, proof_mime = ?,
			state = ?, updated_at = ?
		WHERE id = ?
	`

	taxIDs, err := encodeIDs(expense.TaxIDs)
	if err != nil {
		return err
	}
	distribution, err := encodeDistribution(expense.AnalyticDistribution)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		expense.CompanyID,
		expense.EmployeeID,
		expense.SheetID,
		expense.Name,
		nullString(expense.Description),
		expense.Date,
		expense.CategoryID,
		expense.AccountID,
		taxIDs,
		expense.TotalAmount,
		expense.Currency,
		expense.PaymentMode,
		expense.PaymentAccountMode,
		expense.AreaManagerID,
		expense.VendorID,
		distribution,
		nullString(expense.TravelDestination),
		nullString(expense.TripJustification),
		expense.ExpenseAmount,
		expense.TicketAmount,
		nullString(expense.TransportType),
		expense.TravelDate,
		expense.DurationDays,
		expense.RealExpense,
		expense.Checked,
		expense.VerifiedTotal,
		nullString(expense.ProofPath),
		nullString(expense.ProofFilename),
		nullString(expense.ProofMime),
		expense.State,
		now,
		expense.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.Int64("id", expense.ID), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}

	expense.UpdatedAt = now
	return nil
}

// SetSheet attaches the given expenses to a sheet, or detaches them when sheetID is nil
func (r *ExpenseRepository) SetSheet(ctx context.Context, ids []int64, sheetID *int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE expenses SET sheet_id = ?, updated_at = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{sheetID, time.Now().UTC()}, int64Args(ids)...)

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to set expense sheet", zap.Int64s("ids", ids), zap.Error(err))
		return fmt.Errorf("failed to set expense sheet: %w", err)
	}
	return nil
}

// UpdateStateBySheet sets the state of every line of a sheet
func (r *ExpenseRepository) UpdateStateBySheet(ctx context.Context, sheetID int64, state string) error {
	query := `UPDATE expenses SET state = ?, updated_at = ? WHERE sheet_id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, state, time.Now().UTC(), sheetID); err != nil {
		r.logger.Error("Failed to update expense states",
			zap.Int64("sheet_id", sheetID),
			zap.String("state", state),
			zap.Error(err))
		return fmt.Errorf("failed to update expense states: %w", err)
	}
	return nil
}

// Delete removes an expense
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete expense", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func (r *ExpenseRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Expense, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	expenses := []*entity.Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var e entity.Expense
	var sheetID, categoryID, accountID, areaManagerID, vendorID sql.NullInt64
	var date, travelDate sql.NullTime
	var description, destination, justification, transportType sql.NullString
	var proofPath, proofFilename, proofMime, distribution sql.NullString
	var taxIDs string

	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.EmployeeID,
		&sheetID,
		&e.Name,
		&description,
		&date,
		&categoryID,
		&accountID,
		&taxIDs,
		&e.TotalAmount,
		&e.Currency,
		&e.PaymentMode,
		&e.PaymentAccountMode,
		&areaManagerID,
		&vendorID,
		&distribution,
		&destination,
		&justification,
		&e.ExpenseAmount,
		&e.TicketAmount,
		&transportType,
		&travelDate,
		&e.DurationDays,
		&e.RealExpense,
		&e.Checked,
		&e.VerifiedTotal,
		&proofPath,
		&proofFilename,
		&proofMime,
		&e.State,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.SheetID = int64Ptr(sheetID)
	e.CategoryID = int64Ptr(categoryID)
	e.AccountID = int64Ptr(accountID)
	e.AreaManagerID = int64Ptr(areaManagerID)
	e.VendorID = int64Ptr(vendorID)
	e.Date = timePtr(date)
	e.TravelDate = timePtr(travelDate)
	e.Description = description.String
	e.TravelDestination = destination.String
	e.TripJustification = justification.String
	e.TransportType = transportType.String
	e.ProofPath = proofPath.String
	e.ProofFilename = proofFilename.String
	e.ProofMime = proofMime.String

	if e.TaxIDs, err = decodeIDs(taxIDs); err != nil {
		return nil, err
	}
	if e.AnalyticDistribution, err = decodeDistribution(distribution); err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *ExpenseRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
