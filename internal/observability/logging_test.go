package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerAddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("production", &buf, slog.LevelInfo)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithModerator(ctx, "alice")
	logger.InfoContext(ctx, "hello", slog.Int("n", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "alice", rec["moderator"])
	assert.EqualValues(t, 3, rec["n"])
}

func TestNewLoggerKeepsWrapperAcrossWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("development", &buf, slog.LevelInfo).With(slog.String("component", "test"))

	logger.InfoContext(WithModerator(context.Background(), "bob"), "scoped")

	out := buf.String()
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "moderator=bob")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestModeratorFrom(t *testing.T) {
	assert.Equal(t, "", ModeratorFrom(context.Background()))
	assert.Equal(t, "carol", ModeratorFrom(WithModerator(context.Background(), "carol")))
}
