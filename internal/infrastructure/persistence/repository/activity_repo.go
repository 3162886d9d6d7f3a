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

// ActivityRepository implements port.ActivityRepository
type ActivityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, logger *zap.Logger) port.ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// Create schedules an activity
func (r *ActivityRepository) Create(ctx context.Context, activity *entity.Activity) error {
	query := `
		INSERT INTO activities (sheet_id, user_id, type, state, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		activity.SheetID,
		activity.UserID,
		activity.Type,
		activity.State,
		nullString(activity.Note),
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create activity",
			zap.Int64("sheet_id", activity.SheetID),
			zap.Int64("user_id", activity.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	activity.ID = id
	activity.CreatedAt = now
	return nil
}

// ListBySheet retrieves the activities of a sheet
func (r *ActivityRepository) ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Activity, error) {
	query := `
		SELECT id, sheet_id, user_id, type, state, note, created_at, done_at
		FROM activities
		WHERE sheet_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, sheetID)
	if err != nil {
		r.logger.Error("Failed to list activities", zap.Int64("sheet_id", sheetID), zap.Error(err))
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*entity.Activity{}
	for rows.Next() {
		var a entity.Activity
		var note sql.NullString
		var doneAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.SheetID, &a.UserID, &a.Type, &a.State, &note, &a.CreatedAt, &doneAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Note = note.String
		a.DoneAt = timePtr(doneAt)
		activities = append(activities, &a)
	}

	return activities, rows.Err()
}

// MarkDone closes the open activities of the given type on a sheet
func (r *ActivityRepository) MarkDone(ctx context.Context, sheetID int64, activityType string, at time.Time) error {
	query := `UPDATE activities SET state = ?, done_at = ? WHERE sheet_id = ? AND type = ? AND state = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entity.ActivityDone, at, sheetID, activityType, entity.ActivityOpen)
	if err != nil {
		r.logger.Error("Failed to mark activities done", zap.Int64("sheet_id", sheetID), zap.Error(err))
		return fmt.Errorf("failed to mark activities done: %w", err)
	}
	return nil
}

// DeleteOpen removes the open activities of the given type on a sheet
func (r *ActivityRepository) DeleteOpen(ctx context.Context, sheetID int64, activityType string) error {
	query := `DELETE FROM activities WHERE sheet_id = ? AND type = ? AND state = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, sheetID, activityType, entity.ActivityOpen); err != nil {
		r.logger.Error("Failed to delete activities", zap.Int64("sheet_id", sheetID), zap.Error(err))
		return fmt.Errorf("failed to delete activities: %w", err)
	}
	return nil
}

func (r *ActivityRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.ActivityRepository = (*ActivityRepository)(nil)
