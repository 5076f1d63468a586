// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// JobIDKey is the context key for the import job ID
	JobIDKey contextKey = "job_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and job_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if jobID, ok := ctx.Value(JobIDKey).(string); ok && jobID != "" {
		newLogger = newLogger.WithJobID(jobID)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithJobID returns a logger with the import job ID
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("job_id", jobID)),
	}
}

// WithLayerID returns a logger with the layer ID
func (l *Logger) WithLayerID(layerID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("layer_id", layerID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ImportBatch logs completion of one import batch
func (l *Logger) ImportBatch(jobID string, batch, imported, failed, skipped int) {
	l.Info("import_batch",
		slog.String("job_id", jobID),
		slog.Int("batch", batch),
		slog.Int("imported", imported),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
	)
}

// GeodesyCall logs a call to the external geodesy transformation service
func (l *Logger) GeodesyCall(endpoint string, status int, latencyMs float64) {
	l.Debug("geodesy_call",
		slog.String("endpoint", endpoint),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
	)
}

// GeodesyError logs a failed call to the external geodesy transformation service
func (l *Logger) GeodesyError(endpoint string, err error) {
	l.Error("geodesy_error",
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
