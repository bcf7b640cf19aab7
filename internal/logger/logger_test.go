package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.InitializeWithWriter(&buf, "debug", "json")
	defer logger.InitializeWithWriter(&bytes.Buffer{}, "info", "text")

	logger.WithRun("run-7").Info("Catalog sync started")
	logger.CacheEvent("miss", "pricing:catalog")
	logger.ExternalServiceResult("sheets", "values.get", errors.New("quota"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "run-7", entry["run_id"])
	assert.Equal(t, "catalog-sync", entry["service"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "miss", entry["event"])
	assert.Equal(t, "DEBUG", entry["level"])

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "quota", entry["error"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger.InitializeWithWriter(&buf, "warn", "text")
	defer logger.InitializeWithWriter(&bytes.Buffer{}, "info", "text")

	logger.Info("hidden")
	logger.DatabaseCall("SELECT", "products")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.NotContains(t, buf.String(), "Database call")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextVariantsAndService(t *testing.T) {
	var buf bytes.Buffer
	logger.InitializeWithWriter(&buf, "debug", "json")
	defer logger.InitializeWithWriter(&bytes.Buffer{}, "info", "text")

	ctx := context.Background()
	logger.DebugContext(ctx, "served from cache")
	logger.InfoContext(ctx, "cleared")
	logger.WarnContext(ctx, "fell back")
	logger.ErrorContext(ctx, "failed")
	logger.WithService("jobs").Info("Starting job", "job", "SyncCatalog")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	levels := make([]string, 0, 4)
	for _, line := range lines[:4] {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		levels = append(levels, entry["level"].(string))
	}
	assert.Equal(t, []string{"DEBUG", "INFO", "WARN", "ERROR"}, levels)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &entry))
	assert.Equal(t, "jobs", entry["service"])
	assert.Equal(t, "SyncCatalog", entry["job"])
	assert.Same(t, logger.Get(), logger.Get())
}
