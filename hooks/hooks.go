// Package hooks provides core.Hook and core.Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs each pipeline step.  Steps run inside an HTTP request carry
// that request's id so they line up with the access log.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(ctx context.Context, stepName string, img *core.ImageData) {
	h.logger.Debug("pipeline.step.start", withRequestID(ctx,
		"step", stepName,
		"format", img.Format,
		"bytes", len(img.Data),
	)...)
}

func (h *LoggingHook) AfterStep(ctx context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.step.error", withRequestID(ctx,
			"step", stepName,
			"duration_ms", d.Milliseconds(),
			"category", apperrors.CategoryOf(err),
			"error", err.Error(),
		)...)
		return
	}
	h.logger.Debug("pipeline.step.done", withRequestID(ctx,
		"step", stepName,
		"duration_ms", d.Milliseconds(),
		"width", img.Meta.Width,
		"height", img.Meta.Height,
	)...)
}

func withRequestID(ctx context.Context, fields ...interface{}) []interface{} {
	if id := middleware.GetReqID(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	return fields
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStep(_ context.Context, _ string, _ *core.ImageData) {}

func (h *MetricsHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	h.collector.RecordProcessingTime(stepName, d)
	if err != nil {
		h.collector.RecordError(stepName, string(apperrors.CategoryOf(err)))
		return
	}
	if stepName == "encode" && img != nil {
		h.collector.RecordThroughput(img.Meta.SizeBytes)
	}
}
