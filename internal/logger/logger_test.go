package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARNING},
		{"Warning", WARNING},
		{"error", ERROR},
		{"nonsense", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARNING, &buf)

	l.Info("hidden %d", 1)
	l.Warning("shown %d", 2)
	_ = l.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(ERROR, &buf)

	Info("before")
	SetLevel(DEBUG)
	Debug("after")

	assert.True(t, IsDebugEnabled())
	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}
