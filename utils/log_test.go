package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "solver.log")
	logger, err := NewLogger("debug", file)
	require.NoError(t, err)
	logger.Infow("auction observed", "slot", 42)
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "auction observed")
	assert.Contains(t, string(data), `"slot":42`)
}

func TestNewLoggerRejectsLevel(t *testing.T) {
	_, err := NewLogger("loud", "")
	assert.Error(t, err)
}
