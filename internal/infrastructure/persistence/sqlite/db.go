package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
)

type txKey struct{}

// txState is the transaction carried by a context, with the callbacks waiting for its commit
type txState struct {
	tx          *sql.Tx
	base        context.Context
	afterCommit []func(ctx context.Context)
}

// DB wraps sql.DB and implements port.TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// WithTransaction runs fn with a context carrying a transaction.
// Nested calls join the transaction already carried by ctx.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if stateFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	state := &txState{tx: tx, base: ctx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range state.afterCommit {
		hook(state.base)
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits; it is
// dropped on rollback. Outside a transaction fn runs immediately. fn receives
// a context without the transaction.
func (db *DB) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	state := stateFrom(ctx)
	if state == nil {
		fn(ctx)
		return
	}
	state.afterCommit = append(state.afterCommit, fn)
}

func stateFrom(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFrom returns the transaction carried by ctx, or db when there is none.
// Repositories call it so that their statements join WithTransaction.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if state := stateFrom(ctx); state != nil {
		return state.tx
	}
	return db
}

var _ port.TransactionManager = (*DB)(nil)
