package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	surfaceKey contextKey = "surface"
)

// WithRunID annotates ctx with a pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the pipeline run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}

// WithSurface annotates ctx with the target surface identifier.
func WithSurface(ctx context.Context, surface string) context.Context {
	if surface == "" {
		return ctx
	}
	return context.WithValue(ctx, surfaceKey, surface)
}

// SurfaceFromContext extracts the target surface identifier if present.
func SurfaceFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(surfaceKey).(string)
	return v, ok && v != ""
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	fields := make([]slog.Attr, 0, 2)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if surface, ok := SurfaceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSurface, surface))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
