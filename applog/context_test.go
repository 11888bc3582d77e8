package applog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetContextFieldsEmpty(t *testing.T) {
	fields := getContextFields(context.Background())
	assert.Nil(t, fields, "expected no fields")
}

func TestMergeContextFields(t *testing.T) {
	initial := []zap.Field{zap.String("device", "julabo"), zap.String("test", "julabo")}
	ctx := context.WithValue(context.Background(), logContextFieldKey{}, initial)

	merged := mergeContextFields(ctx, zap.String("port", "5001"))
	assert.Equal(t,
		[]zap.Field{zap.String("port", "5001"), zap.String("device", "julabo"), zap.String("test", "julabo")},
		merged)

	// Same key is overridden by the newer value.
	merged = mergeContextFields(ctx, zap.String("device", "eurotherm"))
	assert.Equal(t,
		[]zap.Field{zap.String("device", "eurotherm"), zap.String("test", "julabo")},
		merged)
}

func TestWithDeviceAddsIdentityFields(t *testing.T) {
	ctx := WithDevice(context.Background(), "tpg300", "tpg300", "tpg300_2")
	fields := getContextFields(ctx)

	got := map[string]string{}
	for _, field := range fields {
		got[field.Key] = field.String
	}
	assert.Equal(t, map[string]string{
		"test":       "tpg300",
		"device":     "tpg300",
		"emulatorId": "tpg300_2",
	}, got)
}

func TestFromContext(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	setLogger(zap.New(core))

	ctx := AddContextFields(context.Background(), zap.String("emulatorId", "kepco"))
	FromContext(ctx).Info("test message")

	entries := observed.All()
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry, got none")
	}

	found := false
	for _, field := range entries[0].Context {
		if field.Key == "emulatorId" && field.String == "kepco" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected log entry to contain field 'emulatorId' with value 'kepco'")
}
