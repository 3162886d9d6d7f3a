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

// MessageRepository implements port.MessageRepository
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMessageRepository creates a new chatter message repository
func NewMessageRepository(db *sql.DB, logger *zap.Logger) port.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a message to a record's chatter
func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	query := `
		INSERT INTO messages (res_model, res_id, body, subtype, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		msg.ResModel,
		msg.ResID,
		msg.Body,
		msg.Subtype,
		msg.AuthorID,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create message",
			zap.String("res_model", msg.ResModel),
			zap.Int64("res_id", msg.ResID),
			zap.Error(err))
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// ListByRecord retrieves the chatter of a record, oldest first
func (r *MessageRepository) ListByRecord(ctx context.Context, resModel string, resID int64) ([]*entity.Message, error) {
	query := `
		SELECT id, res_model, res_id, body, subtype, author_id, created_at
		FROM messages
		WHERE res_model = ? AND res_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, resModel, resID)
	if err != nil {
		r.logger.Error("Failed to list messages",
			zap.String("res_model", resModel),
			zap.Int64("res_id", resID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*entity.Message{}
	for rows.Next() {
		var m entity.Message
		var author sql.NullInt64
		if err := rows.Scan(&m.ID, &m.ResModel, &m.ResID, &m.Body, &m.Subtype, &author, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.AuthorID = int64Ptr(author)
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

func (r *MessageRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.MessageRepository = (*MessageRepository)(nil)
