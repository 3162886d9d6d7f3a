package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/testdb"
)

func countCompanies(t *testing.T, db *sqlite.DB, ctx context.Context) int {
	t.Helper()
	var n int
	require.NoError(t, sqlite.ExecutorFrom(ctx, db.DB).QueryRowContext(ctx, "SELECT COUNT(*) FROM companies").Scan(&n))
	return n
}

func insertCompany(ctx context.Context, db *sqlite.DB, name string) error {
	_, err := sqlite.ExecutorFrom(ctx, db.DB).ExecContext(ctx, "INSERT INTO companies (name, currency) VALUES (?, 'PEN')", name)
	return err
}

func TestWithTransaction_CommitRunsHooks(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()

	var hookSawCommit int
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, insertCompany(txCtx, db, "Andes Travel"))

		// nested calls join the outer transaction
		require.NoError(t, db.WithTransaction(txCtx, func(inner context.Context) error {
			return insertCompany(inner, db, "Pacific Tours")
		}))

		db.AfterCommit(txCtx, func(hookCtx context.Context) {
			hookSawCommit = countCompanies(t, db, hookCtx)
		})
		assert.Zero(t, hookSawCommit, "hook must wait for the commit")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, hookSawCommit)
}

func TestWithTransaction_RollbackDropsHooks(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	ran := false
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, insertCompany(txCtx, db, "Andes Travel"))
		db.AfterCommit(txCtx, func(context.Context) { ran = true })
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, ran)
	assert.Zero(t, countCompanies(t, db, ctx))
}

func TestAfterCommit_OutsideTransaction(t *testing.T) {
	db := testdb.New(t)

	ran := false
	db.AfterCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
}
