package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(format logFormat) (*slog.Logger, *bytes.Buffer, *lineWriter) {
	buf := &bytes.Buffer{}
	w := newLineWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: w,
		format: format,
	})
	return slog.New(h), buf, w
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, buf, w := newTestLogger(formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "order"), slog.LevelInfo, "order.finalized",
		slog.String("status", "OK"),
		slog.String("drink", "Латте"),
	)
	require.NoError(t, w.Close())

	tokens := strings.Split(strings.TrimSpace(buf.String()), " ")
	expected := []string{"ts=", "level=INFO", "component=order", "event=order.finalized", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "drink=Латте"}
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, prefix := range expected {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, expected prefix %s", i, tokens[i], prefix)
	}
}

func TestStructuredHandlerJSONCompactRID(t *testing.T) {
	log, buf, w := newTestLogger(formatJSON)
	ctx := WithRID(Background(), BuildRID(12, 34, 56))

	LogEvent(ctx, log, slog.LevelError, "store.failed",
		slog.Any("err", errors.New("boom")),
		slog.Duration("duration", 1500*time.Microsecond),
	)
	require.NoError(t, w.Close())

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, `{"ts":`), line)
	assert.Contains(t, line, `"component":"app"`)
	assert.Contains(t, line, `"rid":"`+CompactRID("12:34:56")+`"`)
	assert.Contains(t, line, `"rid_full":"12:34:56"`)
	assert.Contains(t, line, `"err":"boom"`)
	assert.Contains(t, line, `"duration_ms":2`)
}

func TestStructuredHandlerDropsEmptyAndBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newLineWriter([]io.Writer{buf}, 0)
	log := slog.New(newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: w, format: formatKV}))

	log.Info("hidden")
	log.Warn("shown", slog.String("payload", ""))
	require.NoError(t, w.Close())

	line := strings.TrimSpace(buf.String())
	assert.NotContains(t, line, "hidden")
	assert.Contains(t, line, "event=shown")
	assert.NotContains(t, line, "payload=")
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "a.b.c", CompactRID("10:11:12"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())
	assert.Equal(t, [2]int{1, 10}, func() [2]int { n, d := parseRatioSpec("10"); return [2]int{n, d} }())
}
