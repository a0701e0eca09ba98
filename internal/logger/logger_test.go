package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestZapLoggerLevel(t *testing.T) {
	l := NewZapLogger(false, "warn", "")
	assert.Equal(t, LevelWarn, l.GetLevel())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())

	// Development loggers write to stderr; logging must not panic with nil fields.
	l.Debug("debug line", nil)
	l.Info("info line", map[string]any{"user_id": 1})
}

func TestZapLoggerFormat(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l := NewZapLogger(true, "info", format)
		assert.Equal(t, LevelInfo, l.GetLevel(), format)
		l.Info("format line", map[string]any{"format": format})
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	l.SetLevel(LevelError)
	assert.Equal(t, LevelError, l.GetLevel())
	l.Error("ignored", map[string]any{"k": "v"})
	assert.NoError(t, l.Flush())
}
