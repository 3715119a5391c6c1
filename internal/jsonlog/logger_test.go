package jsonlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"Error":   LevelError,
		"fatal":   LevelFatal,
		"off":     LevelOff,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_WritesJSONWithProperties(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.PrintInfo("stored", map[string]string{"component": "ingest", "notification_id": "abc"})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "stored", got["message"])
	assert.NotEmpty(t, got["time"])

	props, ok := got["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ingest", props["component"])
	assert.Equal(t, "abc", props["notification_id"])
}

func TestLogger_RespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)

	l.PrintInfo("quiet", nil)
	l.PrintWarn("quiet too", nil)
	assert.Zero(t, buf.Len())

	l.PrintError(errors.New("boom"), nil)
	assert.Contains(t, buf.String(), "boom")
}

func TestLogger_TraceOnDemand(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.PrintErrorWithTrace(errors.New("panic"), nil)
	assert.Contains(t, buf.String(), `"trace"`)
}

func TestLogger_NilErrorIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.PrintError(nil, nil)
	assert.Zero(t, buf.Len())
}

func TestLogger_Write(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	n, err := l.Write([]byte("http: TLS handshake error\n"))
	require.NoError(t, err)
	assert.Equal(t, len("http: TLS handshake error\n"), n)
	assert.True(t, strings.Contains(buf.String(), `"level":"error"`))
}
