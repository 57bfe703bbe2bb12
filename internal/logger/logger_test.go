package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"loud":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	l, err := New("error", "json", "rooms")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = New("debug", "console", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
