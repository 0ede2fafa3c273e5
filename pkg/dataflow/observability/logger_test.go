package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestEnrichLogger(t *testing.T) {
	logger, buf := newJSONLogger()

	EnrichLogger(logger, "run-1", "pca", "fit").Info("hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "pca", lines[0]["node_id"])
	assert.Equal(t, "fit", lines[0]["mode"])
}

func TestEnrichLogger_Nil(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "r", "n", "fit"))
}

func TestRunLifecycleLogs(t *testing.T) {
	logger, buf := newJSONLogger()

	LogRunStart(logger, "run-1", "sink", "fit", 3)
	LogNodeStart(logger, "src", "fit")
	LogNodeComplete(logger, "src", 1.5, 40)
	LogNodeError(logger, "pca", errors.New("column mismatch"))
	LogRunError(logger, "run-1", errors.New("column mismatch"), 2, "pca")
	LogRunComplete(logger, "run-2", 3, 3)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 6)
	assert.Equal(t, "dag run starting", lines[0]["msg"])
	assert.Equal(t, float64(3), lines[0]["closure_size"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
	assert.Equal(t, float64(40), lines[2]["rows_out"])
	assert.Equal(t, "ERROR", lines[3]["level"])
	assert.Equal(t, "pca", lines[4]["last_node"])
	assert.Equal(t, float64(3), lines[5]["nodes_executed"])
}

func TestSourceAndTriggerLogs(t *testing.T) {
	logger, buf := newJSONLogger()

	LogSourceLoad(logger, "load_prices", "[*, *]", 12)
	LogTrigger(logger, time.Date(2010, 1, 4, 9, 35, 0, 0, time.UTC), "sink")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "source loaded", lines[0]["msg"])
	assert.Equal(t, "trigger fired", lines[1]["msg"])
	assert.Equal(t, "sink", lines[1]["sink"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "r", "t", "fit", 1)
		LogRunComplete(nil, "r", 1, 1)
		LogRunError(nil, "r", errors.New("x"), 1, "n")
		LogNodeStart(nil, "n", "fit")
		LogNodeComplete(nil, "n", 1, 1)
		LogNodeError(nil, "n", errors.New("x"))
		LogSourceLoad(nil, "n", "w", 1)
		LogTrigger(nil, time.Now(), "s")
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
