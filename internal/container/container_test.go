package container

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/domain/event"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	cfg.Storage.ProofDir = filepath.Join(t.TempDir(), "proofs")
	return cfg
}

func TestNewContainer(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Lark.AppID = "cli_only_id"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	services := c.Services()
	require.NotNil(t, services)
	assert.NotNil(t, services.Expense)
	assert.NotNil(t, services.Settlement)
	assert.Nil(t, services.Notification, "no notifier without Lark credentials")

	// migrations ran: the catalog is queryable
	companies, err := services.Catalog.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, companies)

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["notifications"].Message)
	assert.True(t, health.Components["database"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_NotificationsSubscribed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lark.AppID = "cli_test"
	cfg.Lark.AppSecret = "secret"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.NotNil(t, c.Services().Notification)
	assert.Contains(t, c.dispatcher.HandlerNames(event.TypeSheetApproved), "lark-notification")
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("id", 3, "error", fmt.Errorf("boom"), 42, "ignored", "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
