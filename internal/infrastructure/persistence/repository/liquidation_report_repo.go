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

// LiquidationReportRepository implements port.LiquidationReportRepository
type LiquidationReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLiquidationReportRepository creates a new liquidation report repository
func NewLiquidationReportRepository(db *sql.DB, logger *zap.Logger) port.LiquidationReportRepository {
	return &LiquidationReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a report. A second report for the same sheet fails with port.ErrConflict.
func (r *LiquidationReportRepository) Create(ctx context.Context, report *entity.LiquidationReport) error {
	query := `INSERT INTO liquidation_reports (sheet_id, notes, created_by, created_at) VALUES (?, ?, ?, ?)`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		report.SheetID,
		nullString(report.Notes),
		report.CreatedBy,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create liquidation report", zap.Int64("sheet_id", report.SheetID), zap.Error(err))
		return conflictOr(err, "failed to create liquidation report")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	report.CreatedAt = now
	return nil
}

// GetBySheetID retrieves the report of a sheet
func (r *LiquidationReportRepository) GetBySheetID(ctx context.Context, sheetID int64) (*entity.LiquidationReport, error) {
	query := `SELECT id, sheet_id, notes, created_by, created_at FROM liquidation_reports WHERE sheet_id = ?`

	var report entity.LiquidationReport
	var notes sql.NullString
	var createdBy sql.NullInt64

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, sheetID).Scan(
		&report.ID,
		&report.SheetID,
		&notes,
		&createdBy,
		&report.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get liquidation report", zap.Int64("sheet_id", sheetID), zap.Error(err))
		return nil, fmt.Errorf("failed to get liquidation report: %w", err)
	}

	report.Notes = notes.String
	report.CreatedBy = int64Ptr(createdBy)
	return &report, nil
}

func (r *LiquidationReportRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.LiquidationReportRepository = (*LiquidationReportRepository)(nil)
