package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Backends(t *testing.T) {
	var buf bytes.Buffer

	l, err := New("slog", "info", &buf)
	require.NoError(t, err)
	assert.IsType(t, &SlogLogger{}, l)

	l, err = New("zap", "info", &buf)
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	_, err = New("logrus", "info", &buf)
	require.Error(t, err)
}

func TestZapLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewZapLoggerTo(&buf, "debug")
	require.NoError(t, err)

	l.With("component", "gateway").Warn(context.Background(), "request failed", "status", 503)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request failed"`)
	assert.Contains(t, out, `"component":"gateway"`)
	assert.Contains(t, out, `"status":503`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop().With("a", 1)
	l.Info(context.Background(), "x")
	l.Error(context.Background(), "y")
}
