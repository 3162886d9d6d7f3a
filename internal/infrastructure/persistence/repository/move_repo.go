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

const moveColumns = `
	id, name, company_id, journal_id, sheet_id, move_type, state, payment_state,
	partner_id, date, invoice_date, ref, currency, amount_total, amount_residual,
	reversed_entry_id, payment_id, created_at, updated_at`

const moveLineColumns = `
	id, move_id, name, account_id, partner_id, expense_id, tax_ids, tax_line_id,
	debit, credit, analytic_distribution, display_type`

// MoveRepository implements port.MoveRepository.
// Create writes several rows; callers run it inside a transaction.
type MoveRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMoveRepository creates a new move repository
func NewMoveRepository(db *sql.DB, logger *zap.Logger) port.MoveRepository {
	return &MoveRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a move and its lines
func (r *MoveRepository) Create(ctx context.Context, move *entity.Move) error {
	query := `
		INSERT INTO moves (
			name, company_id, journal_id, sheet_id, move_type, state, payment_state,
			partner_id, date, invoice_date, ref, currency, amount_total, amount_residual,
			reversed_entry_id, payment_id, created_at, updated_at
		) VALUES (` + placeholders(18) + `)
	`

	now := time.Now().UTC()
	args := append(moveValues(move), now, now)
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create move",
			zap.String("move_type", move.MoveType),
			zap.Int64("journal_id", move.JournalID),
			zap.Error(err))
		return fmt.Errorf("failed to create move: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	move.ID = id
	move.CreatedAt = now
	move.UpdatedAt = now

	for _, line := range move.Lines {
		line.MoveID = id
		if err := r.createLine(ctx, line); err != nil {
			return err
		}
	}

	return nil
}

func (r *MoveRepository) createLine(ctx context.Context, line *entity.MoveLine) error {
	query := `
		INSERT INTO move_lines (
			move_id, name, account_id, partner_id, expense_id, tax_ids, tax_line_id,
			debit, credit, analytic_distribution, display_type
		) VALUES (` + placeholders(11) + `)
	`

	taxIDs, err := encodeIDs(line.TaxIDs)
	if err != nil {
		return err
	}
	distribution, err := encodeDistribution(line.AnalyticDistribution)
	if err != nil {
		return err
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		line.MoveID,
		line.Name,
		line.AccountID,
		line.PartnerID,
		line.ExpenseID,
		taxIDs,
		line.TaxLineID,
		line.Debit,
		line.Credit,
		distribution,
		line.DisplayType,
	)
	if err != nil {
		r.logger.Error("Failed to create move line", zap.Int64("move_id", line.MoveID), zap.Error(err))
		return fmt.Errorf("failed to create move line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// GetByID retrieves a move with its lines
func (r *MoveRepository) GetByID(ctx context.Context, id int64) (*entity.Move, error) {
	query := `SELECT ` + moveColumns + ` FROM moves WHERE id = ?`

	move, err := scanMove(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get move by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get move: %w", err)
	}

	if move.Lines, err = r.listLines(ctx, move.ID); err != nil {
		return nil, err
	}
	return move, nil
}

// ListBySheet retrieves the moves of a sheet with their lines
func (r *MoveRepository) ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Move, error) {
	query := `SELECT ` + moveColumns + ` FROM moves WHERE sheet_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, sheetID)
	if err != nil {
		r.logger.Error("Failed to list sheet moves", zap.Int64("sheet_id", sheetID), zap.Error(err))
		return nil, fmt.Errorf("failed to list sheet moves: %w", err)
	}

	moves := []*entity.Move{}
	for rows.Next() {
		move, err := scanMove(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		moves = append(moves, move)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// lines are loaded once the cursor is released; a transaction holds a single connection
	for _, move := range moves {
		if move.Lines, err = r.listLines(ctx, move.ID); err != nil {
			return nil, err
		}
	}
	return moves, nil
}

func (r *MoveRepository) listLines(ctx context.Context, moveID int64) ([]*entity.MoveLine, error) {
	query := `SELECT ` + moveLineColumns + ` FROM move_lines WHERE move_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, moveID)
	if err != nil {
		r.logger.Error("Failed to list move lines", zap.Int64("move_id", moveID), zap.Error(err))
		return nil, fmt.Errorf("failed to list move lines: %w", err)
	}
	defer rows.Close()

	lines := []*entity.MoveLine{}
	for rows.Next() {
		var l entity.MoveLine
		var partnerID, expenseID, taxLineID sql.NullInt64
		var distribution sql.NullString
		var taxIDs string

		err := rows.Scan(
			&l.ID,
			&l.MoveID,
			&l.Name,
			&l.AccountID,
			&partnerID,
			&expenseID,
			&taxIDs,
			&taxLineID,
			&l.Debit,
			&l.Credit,
			&distribution,
			&l.DisplayType,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan move line: %w", err)
		}

		l.PartnerID = int64Ptr(partnerID)
		l.ExpenseID = int64Ptr(expenseID)
		l.TaxLineID = int64Ptr(taxLineID)
		if l.TaxIDs, err = decodeIDs(taxIDs); err != nil {
			return nil, err
		}
		if l.AnalyticDistribution, err = decodeDistribution(distribution); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}

	return lines, rows.Err()
}

// Update saves the header of a move. Lines are immutable once created.
func (r *MoveRepository) Update(ctx context.Context, move *entity.Move) error {
	query := `
		UPDATE moves SET
			name = ?, company_id = ?, journal_id = ?, sheet_id = ?, move_type = ?, state = ?,
			payment_state = ?, partner_id = ?, date = ?, invoice_date = ?, ref = ?, currency = ?,
			amount_total = ?, amount_residual = ?, reversed_entry_id = ?, payment_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	args := append(moveValues(move), now, move.ID)
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to update move", zap.Int64("id", move.ID), zap.Error(err))
		return fmt.Errorf("failed to update move: %w", err)
	}

	move.UpdatedAt = now
	return nil
}

// Delete removes a move and its lines
func (r *MoveRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM moves WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete move", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete move: %w", err)
	}
	return nil
}

// NextSequence reserves the next number of a journal for the given year
func (r *MoveRepository) NextSequence(ctx context.Context, journalID int64, year int) (int, error) {
	query := `
		INSERT INTO move_sequences (journal_id, year, last_number) VALUES (?, ?, 1)
		ON CONFLICT (journal_id, year) DO UPDATE SET last_number = last_number + 1
		RETURNING last_number
	`

	var next int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, journalID, year).Scan(&next); err != nil {
		r.logger.Error("Failed to reserve move sequence",
			zap.Int64("journal_id", journalID),
			zap.Int("year", year),
			zap.Error(err))
		return 0, fmt.Errorf("failed to reserve move sequence: %w", err)
	}
	return next, nil
}

func moveValues(m *entity.Move) []interface{} {
	return []interface{}{
		m.Name,
		m.CompanyID,
		m.JournalID,
		m.SheetID,
		m.MoveType,
		m.State,
		m.PaymentState,
		m.PartnerID,
		m.Date,
		m.InvoiceDate,
		nullString(m.Ref),
		m.Currency,
		m.AmountTotal,
		m.AmountResidual,
		m.ReversedEntryID,
		m.PaymentID,
	}
}

func scanMove(row rowScanner) (*entity.Move, error) {
	var m entity.Move
	var sheetID, partnerID, reversedID, paymentID sql.NullInt64
	var invoiceDate sql.NullTime
	var ref sql.NullString

	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.CompanyID,
		&m.JournalID,
		&sheetID,
		&m.MoveType,
		&m.State,
		&m.PaymentState,
		&partnerID,
		&m.Date,
		&invoiceDate,
		&ref,
		&m.Currency,
		&m.AmountTotal,
		&m.AmountResidual,
		&reversedID,
		&paymentID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.SheetID = int64Ptr(sheetID)
	m.PartnerID = int64Ptr(partnerID)
	m.ReversedEntryID = int64Ptr(reversedID)
	m.PaymentID = int64Ptr(paymentID)
	m.InvoiceDate = timePtr(invoiceDate)
	m.Ref = ref.String

	return &m, nil
}

func (r *MoveRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.MoveRepository = (*MoveRepository)(nil)
