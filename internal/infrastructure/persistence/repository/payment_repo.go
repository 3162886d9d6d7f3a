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

const paymentColumns = `
	id, company_id, journal_id, move_id, invoice_id, partner_id, amount, currency,
	payment_type, partner_type, state, date, memo, created_at`

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payment
func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			company_id, journal_id, move_id, invoice_id, partner_id, amount, currency,
			payment_type, partner_type, state, date, memo, created_at
		) VALUES (` + placeholders(13) + `)
	`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		payment.CompanyID,
		payment.JournalID,
		payment.MoveID,
		payment.InvoiceID,
		payment.PartnerID,
		payment.Amount,
		payment.Currency,
		payment.PaymentType,
		payment.PartnerType,
		payment.State,
		payment.Date,
		nullString(payment.Memo),
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create payment",
			zap.Int64("journal_id", payment.JournalID),
			zap.String("amount", payment.Amount.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	payment.ID = id
	payment.CreatedAt = now
	return nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment, err := scanPayment(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListByInvoice retrieves the payments reconciled with an invoice
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list invoice payments", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice payments: %w", err)
	}
	defer rows.Close()

	payments := []*entity.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// UpdateState sets the state of a payment
func (r *PaymentRepository) UpdateState(ctx context.Context, id int64, state string) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `UPDATE payments SET state = ? WHERE id = ?`, state, id); err != nil {
		r.logger.Error("Failed to update payment state",
			zap.Int64("id", id),
			zap.String("state", state),
			zap.Error(err))
		return fmt.Errorf("failed to update payment state: %w", err)
	}
	return nil
}

func scanPayment(row rowScanner) (*entity.Payment, error) {
	var p entity.Payment
	var moveID, invoiceID, partnerID sql.NullInt64
	var memo sql.NullString

	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.JournalID,
		&moveID,
		&invoiceID,
		&partnerID,
		&p.Amount,
		&p.Currency,
		&p.PaymentType,
		&p.PartnerType,
		&p.State,
		&p.Date,
		&memo,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.MoveID = int64Ptr(moveID)
	p.InvoiceID = int64Ptr(invoiceID)
	p.PartnerID = int64Ptr(partnerID)
	p.Memo = memo.String
	return &p, nil
}

func (r *PaymentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.PaymentRepository = (*PaymentRepository)(nil)
