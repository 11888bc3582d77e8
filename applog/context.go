package applog

import (
	"context"

	"go.uber.org/zap"
)

type logContextFieldKey struct{}

// FromContext returns the global logger decorated with the fields stored in ctx.
func FromContext(ctx context.Context) *Logger {
	return globalLogger.With(getContextFields(ctx)...)
}

// WithDevice stores the fields that identify one simulated device so every
// launcher log line for it can be correlated.
func WithDevice(ctx context.Context, testName, device, emulatorID string) context.Context {
	return AddContextFields(ctx,
		zap.String("test", testName),
		zap.String("device", device),
		zap.String("emulatorId", emulatorID),
	)
}

func getContextFields(ctx context.Context) []zap.Field {
	fields, ok := ctx.Value(logContextFieldKey{}).([]zap.Field)
	if !ok {
		return nil
	}
	return fields
}

// New fields win over existing ones with the same key.
func mergeContextFields(ctx context.Context, fields ...zap.Field) []zap.Field {
	current := getContextFields(ctx)
	result := make([]zap.Field, 0, len(current)+len(fields))
	seen := make(map[string]struct{}, len(current)+len(fields))
	for _, v := range fields {
		seen[v.Key] = struct{}{}
		result = append(result, v)
	}
	for _, v := range current {
		if _, ok := seen[v.Key]; ok {
			continue
		}
		seen[v.Key] = struct{}{}
		result = append(result, v)
	}
	return result
}

func AddContextFields(ctx context.Context, fields ...zap.Field) context.Context {
	fm := mergeContextFields(ctx, fields...)
	return context.WithValue(ctx, logContextFieldKey{}, fm)
}
