package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestInfoLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("boarding-service", &buf)

	ctx := l.WithRequestID(context.Background(), "req-1")
	ctx = l.WithUserID(ctx, "user-1")
	l.Info(ctx, "boarding_confirmed", " Boarding confirmed ", map[string]any{"line_id": "875A"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]

	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "boarding-service", line["service"])
	assert.Equal(t, "boarding_confirmed", line["action"])
	assert.Equal(t, "Boarding confirmed", line["message"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.NotEmpty(t, line["timestamp"])
	assert.NotEmpty(t, line["hostname"])
	assert.Equal(t, map[string]any{"line_id": "875A"}, line["details"])
	assert.NotContains(t, line, "error")
}

func TestErrorLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("svc", &buf)

	l.Error(context.Background(), "", "failed", errors.New("boom"), nil)
	l.Error(context.Background(), "nil_error", "failed", nil, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.Equal(t, "unspecified", lines[0]["action"])
	errObj, ok := lines[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", errObj["msg"])
	assert.NotEmpty(t, errObj["stack"])

	errObj, ok = lines[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unknown error", errObj["msg"])
}

func TestDebugSuppressedByDefault(t *testing.T) {
	t.Setenv("LOG_DEBUG", "")
	var buf bytes.Buffer
	l := NewWithWriter("svc", &buf)

	l.Debug(context.Background(), "noise", "hidden", nil)
	assert.Zero(t, buf.Len())
}

func TestContextHelpers(t *testing.T) {
	l := NewWithWriter("svc", &bytes.Buffer{})
	ctx := l.WithRequestID(context.Background(), "  ")
	assert.Equal(t, "", RequestID(ctx))

	ctx = l.WithRequestID(ctx, "abc")
	assert.Equal(t, "abc", RequestID(ctx))
}
