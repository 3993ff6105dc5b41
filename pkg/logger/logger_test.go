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

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_FlattensFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")

	log.Warn("failed to get xp", StudentID("s1"), Err(errors.New("db down")))

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0]["level"])
	assert.Equal(t, "failed to get xp", got[0]["msg"])
	assert.Equal(t, "req-1", got[0][RequestIDKey])
	assert.Equal(t, "s1", got[0]["student_id"])
	assert.Equal(t, "db down", got[0]["error"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	log.Error("shown")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["msg"])
}

func TestLogger_WithDoesNotLeakToParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf})
	_ = parent.With(String("route", "GET /x"))

	parent.Info("plain")
	_, ok := lines(t, &buf)[0]["route"]
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "UNKNOWN", Level(7).String())
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
