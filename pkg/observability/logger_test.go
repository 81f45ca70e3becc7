package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		require.NotZero(t, buf.Len())

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		require.NotZero(t, buf.Len())

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "ERROR", entry["level"])
	})
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("team_id", int64(7)).Info("subscription created")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, float64(7), entry["team_id"])
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"plan": "pro",
		"days": 31,
	}).Info("activated")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "pro", entry["plan"])
	assert.Equal(t, float64(31), entry["days"])
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(assert.AnError).Error("something went wrong")

	entry := decodeEntry(t, &buf)
	assert.Contains(t, entry, "error")

	buf.Reset()
	logger.WithError(nil).Info("no error attached")
	entry = decodeEntry(t, &buf)
	assert.NotContains(t, entry, "error")
}

func TestContextHelpers(t *testing.T) {
	t.Run("RequestID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", GetRequestID(ctx))
	})

	t.Run("FromContext annotates request ID", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(InfoLevel, &buf)

		ctx := WithLogger(context.Background(), logger)
		ctx = WithRequestID(ctx, "req-123")

		FromContext(ctx).Info("test message")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "req-123", entry["request_id"])
	})

	t.Run("GetLogger falls back to default", func(t *testing.T) {
		assert.NotNil(t, GetLogger(context.Background()))
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, InfoLevel, ParseLogLevel("anything-else"))
}
