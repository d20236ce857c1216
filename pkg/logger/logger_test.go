package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, line string) Entry {
	t.Helper()
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	return e
}

func TestLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("http"))

	log.Debug("hidden")
	log.Info("xp awarded", UserID("u1"), XPAmount(25), Err(errors.New("partial")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	e := decode(t, lines[0])
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "xp awarded", e.Message)
	assert.Equal(t, "http", e.Fields["component"])
	assert.Equal(t, "u1", e.Fields["user_id"])
	assert.Equal(t, float64(25), e.Fields["xp_amount"])
	assert.Equal(t, "partial", e.Fields["error"])
}

func TestWithDoesNotLeakFieldsToParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelDebug})
	_ = parent.WithRequestID("req-1")

	parent.Info("plain")
	e := decode(t, strings.TrimSpace(buf.String()))
	assert.NotContains(t, e.Fields, RequestIDKey)
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).WithRequestID("req-9")
	ctx := WithContext(context.Background(), log)

	FromContext(ctx, Nop()).Warn("slow", Latency(1500*time.Microsecond))
	e := decode(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, "req-9", e.Fields[RequestIDKey])
	assert.Equal(t, 1.5, e.Fields["latency_ms"])

	assert.NotNil(t, FromContext(context.Background(), Nop()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
