package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	require.Len(t, fields, 1)
	assert.Equal(t, "provider", fields[0].Key)
	assert.Equal(t, "Gemini", fields[0].String)

	assert.Empty(t, StringFields())
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bar", entries[0].ContextMap()["foo"])

	fallback := WithFields(nil, zap.String("baz", "qux"))
	require.NotNil(t, fallback)
	assert.NotPanics(t, func() { fallback.Info("another log") })
}

func TestCommonFields(t *testing.T) {
	fields := CommonFields("  Gemini  ", "model-v1")

	require.Len(t, fields, 2)
	assert.Equal(t, FieldProvider, fields[0].Key)
	assert.Equal(t, "Gemini", fields[0].String)
	assert.Equal(t, FieldModel, fields[1].Key)
	assert.Equal(t, "model-v1", fields[1].String)

	assert.Empty(t, CommonFields("", ""))
}

func TestWithCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "gemini", "model-x").Info("embedded texts")

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "gemini", ctx[FieldProvider])
	assert.Equal(t, "model-x", ctx[FieldModel])

	fallback := WithCommonFields(nil, "gemini", "model-x")
	require.NotNil(t, fallback)
	assert.NotPanics(t, func() { fallback.Info("another log") })
}
