// Package observability provides structured logging, metrics, and tracing
// for dataflow runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, node_id, and mode fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "pca", "fit")
//	enriched.Info("fitting") // includes run_id, node_id, mode
func EnrichLogger(logger *slog.Logger, runID, nodeID, mode string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.String("mode", mode),
	)
}

// LogRunStart logs the start of a scheduler run.
func LogRunStart(logger *slog.Logger, runID, target, mode string, nodes int) {
	if logger == nil {
		return
	}
	logger.Info("dag run starting",
		slog.String("run_id", runID),
		slog.String("target", target),
		slog.String("mode", mode),
		slog.Int("closure_size", nodes),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("dag run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("dag run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID, mode string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.String("mode", mode),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64, rows int) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("rows_out", rows),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogSourceLoad logs a data source cache fill.
func LogSourceLoad(logger *slog.Logger, nodeID, window string, rows int) {
	if logger == nil {
		return
	}
	logger.Debug("source loaded",
		slog.String("node_id", nodeID),
		slog.String("window", window),
		slog.Int("rows", rows),
	)
}

// LogTrigger logs a real-time trigger decision that fired.
func LogTrigger(logger *slog.Logger, now time.Time, sink string) {
	if logger == nil {
		return
	}
	logger.Info("trigger fired",
		slog.Time("now", now),
		slog.String("sink", sink),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
