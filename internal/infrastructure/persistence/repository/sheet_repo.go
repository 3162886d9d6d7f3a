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

const sheetColumns = `
	id, name, company_id, employee_id, department,
	area_manager_id, provider_id, approved_by_id, journal_id, created_by_id,
	payment_mode, approval_state, state, payment_state, accounting_date,
	total_amount, amount_residual,
	destination, justification, overnight, date_since, date_up, number_days,
	ticket_type, flight_date, airline, route, flight,
	is_liquidation, original_sheet_id, settlement_sheet_id, liquidation_status,
	total_verified, refund, created_at, updated_at`

// SheetRepository implements port.SheetRepository
type SheetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSheetRepository creates a new expense sheet repository
func NewSheetRepository(db *sql.DB, logger *zap.Logger) port.SheetRepository {
	return &SheetRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new sheet. A second settlement of the same advance
// fails with port.ErrConflict.
func (r *SheetRepository) Create(ctx context.Context, sheet *entity.ExpenseSheet) error {
	query := `
		INSERT INTO expense_sheets (
			name, company_id, employee_id, department,
			area_manager_id, provider_id, approved_by_id, journal_id, created_by_id,
			payment_mode, approval_state, state, payment_state, accounting_date,
			total_amount, amount_residual,
			destination, justification, overnight, date_since, date_up, number_days,
			ticket_type, flight_date, airline, route, flight,
			is_liquidation, original_sheet_id, settlement_sheet_id, liquidation_status,
			total_verified, refund, created_at, updated_at
		) VALUES (` + placeholders(35) + `)
	`

	now := time.Now().UTC()
	args := append(r.values(sheet), now, now)
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create expense sheet",
			zap.String("name", sheet.Name),
			zap.Int64("employee_id", sheet.EmployeeID),
			zap.Error(err))
		return conflictOr(err, "failed to create expense sheet")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	sheet.ID = id
	sheet.CreatedAt = now
	sheet.UpdatedAt = now
	return nil
}

// GetByID retrieves a sheet by ID, without lines or moves
func (r *SheetRepository) GetByID(ctx context.Context, id int64) (*entity.ExpenseSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM expense_sheets WHERE id = ?`

	sheet, err := scanSheet(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense sheet by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense sheet: %w", err)
	}

	return sheet, nil
}

// GetByOriginalSheetID retrieves the settlement created from an advance
func (r *SheetRepository) GetByOriginalSheetID(ctx context.Context, originalID int64) (*entity.ExpenseSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM expense_sheets WHERE original_sheet_id = ?`

	sheet, err := scanSheet(r.getExecutor(ctx).QueryRowContext(ctx, query, originalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get settlement sheet",
			zap.Int64("original_sheet_id", originalID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get settlement sheet: %w", err)
	}

	return sheet, nil
}

// List retrieves sheets matching the filter, newest first
func (r *SheetRepository) List(ctx context.Context, filter entity.SheetFilter) ([]*entity.ExpenseSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM expense_sheets WHERE 1 = 1`
	var args []interface{}

	if filter.EmployeeID != nil {
		query += ` AND employee_id = ?`
		args = append(args, *filter.EmployeeID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.IsLiquidation != nil {
		query += ` AND is_liquidation = ?`
		args = append(args, *filter.IsLiquidation)
	}

	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expense sheets", zap.Error(err))
		return nil, fmt.Errorf("failed to list expense sheets: %w", err)
	}
	defer rows.Close()

	sheets := []*entity.ExpenseSheet{}
	for rows.Next() {
		sheet, err := scanSheet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense sheet: %w", err)
		}
		sheets = append(sheets, sheet)
	}

	return sheets, rows.Err()
}

// Update saves every mutable column of a sheet
func (r *SheetRepository) Update(ctx context.Context, sheet *entity.ExpenseSheet) error {
	query := `
		UPDATE expense_sheets SET
			name = ?, company_id = ?, employee_id = ?, department = ?,
			area_manager_id = ?, provider_id = ?, approved_by_id = ?, journal_id = ?, created_by_id = ?,
			payment_mode = ?, approval_state = ?, state = ?, payment_state = ?, accounting_date = ?,
			total_amount = ?, amount_residual = ?,
			destination = ?, justification = ?, overnight = ?, date_since = ?, date_up = ?, number_days = ?,
			ticket_type = ?, flight_date = ?, airline = ?, route = ?, flight = ?,
			is_liquidation = ?, original_sheet_id = ?, settlement_sheet_id = ?, liquidation_status = ?,
			total_verified = ?, refund = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	args := append(r.values(sheet), now, sheet.ID)
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to update expense sheet", zap.Int64("id", sheet.ID), zap.Error(err))
		return conflictOr(err, "failed to update expense sheet")
	}

	sheet.UpdatedAt = now
	return nil
}

// Delete removes a sheet. Its lines are detached, not deleted.
func (r *SheetRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM expense_sheets WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete expense sheet", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete expense sheet: %w", err)
	}
	return nil
}

// values returns the column values shared by insert and update, in column order
func (r *SheetRepository) values(s *entity.ExpenseSheet) []interface{} {
	return []interface{}{
		s.Name,
		s.CompanyID,
		s.EmployeeID,
		nullString(s.Department),
		s.AreaManagerID,
		s.ProviderID,
		s.ApprovedByID,
		s.JournalID,
		s.CreatedByID,
		s.PaymentMode,
		s.ApprovalState,
		s.State,
		s.PaymentState,
		s.AccountingDate,
		s.TotalAmount,
		s.AmountResidual,
		nullString(s.Destination),
		nullString(s.Justification),
		s.Overnight,
		s.DateSince,
		s.DateUp,
		s.NumberDays,
		nullString(s.TicketType),
		s.FlightDate,
		nullString(s.Airline),
		nullString(s.Route),
		nullString(s.Flight),
		s.IsLiquidation,
		s.OriginalSheetID,
		s.SettlementSheetID,
		s.LiquidationStatus,
		s.TotalVerified,
		s.Refund,
	}
}

func scanSheet(row rowScanner) (*entity.ExpenseSheet, error) {
	var s entity.ExpenseSheet
	var areaManagerID, providerID, approvedByID, journalID, createdByID sql.NullInt64
	var originalID, settlementID sql.NullInt64
	var accountingDate, dateSince, dateUp, flightDate sql.NullTime
	var department, destination, justification, ticketType sql.NullString
	var airline, route, flight sql.NullString

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.CompanyID,
		&s.EmployeeID,
		&department,
		&areaManagerID,
		&providerID,
		&approvedByID,
		&journalID,
		&createdByID,
		&s.PaymentMode,
		&s.ApprovalState,
		&s.State,
		&s.PaymentState,
		&accountingDate,
		&s.TotalAmount,
		&s.AmountResidual,
		&destination,
		&justification,
		&s.Overnight,
		&dateSince,
		&dateUp,
		&s.NumberDays,
		&ticketType,
		&flightDate,
		&airline,
		&route,
		&flight,
		&s.IsLiquidation,
		&originalID,
		&settlementID,
		&s.LiquidationStatus,
		&s.TotalVerified,
		&s.Refund,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Department = department.String
	s.AreaManagerID = int64Ptr(areaManagerID)
	s.ProviderID = int64Ptr(providerID)
	s.ApprovedByID = int64Ptr(approvedByID)
	s.JournalID = int64Ptr(journalID)
	s.CreatedByID = int64Ptr(createdByID)
	s.AccountingDate = timePtr(accountingDate)
	s.Destination = destination.String
	s.Justification = justification.String
	s.DateSince = timePtr(dateSince)
	s.DateUp = timePtr(dateUp)
	s.TicketType = ticketType.String
	s.FlightDate = timePtr(flightDate)
	s.Airline = airline.String
	s.Route = route.String
	s.Flight = flight.String
	s.OriginalSheetID = int64Ptr(originalID)
	s.SettlementSheetID = int64Ptr(settlementID)

	return &s, nil
}

func (r *SheetRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.SheetRepository = (*SheetRepository)(nil)
