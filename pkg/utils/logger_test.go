package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{
		Level:      "warn",
		OutputPath: path,
		Format:     "json",
		Service:    "travel-expense",
	})
	require.NoError(t, err)

	logger.Info("dropped below level")
	logger.Warn("Expense report refused", zap.Int64("sheet_id", 7))
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Expense report refused", entry["msg"])
	assert.Equal(t, "travel-expense", entry["service"])
	assert.Equal(t, float64(7), entry["sheet_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
