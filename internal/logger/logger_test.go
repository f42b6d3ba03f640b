package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	assert.Error(t, Setup(cfg))
}

func TestJSONLogToFileCarriesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Setup(DefaultConfig()) })

	l, runID := WithRunID("pipeline")
	pageLog := WithPage(l, 2)
	pageLog.Info().Msg("Page processed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, runID, entry["run_id"])
	assert.EqualValues(t, 3, entry["page"])
	assert.Equal(t, "Page processed", entry["message"])
	assert.Len(t, runID, 36)
}
