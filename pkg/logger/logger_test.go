package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestContextFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "api", Output: &buf, Format: FormatJSON})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithTenant(ctx, "delivery", "company-1")
	ctx = log.WithField(ctx, "order_id", "o-9")
	log.Error(ctx, "payout failed", errors.New("boom"))

	entry := lastEntry(t, &buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "delivery", entry["tenant_type"])
	assert.Equal(t, "company-1", entry["tenant_id"])
	assert.Equal(t, "o-9", entry["order_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestFieldsDoNotLeakToParentContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "api", Output: &buf, Format: FormatJSON})

	parent := log.WithField(context.Background(), "a", 1)
	_ = log.WithField(parent, "b", 2)
	log.Info(parent, "parent")

	entry := lastEntry(t, &buf)
	assert.Contains(t, entry, "a")
	assert.NotContains(t, entry, "b")
}

func TestWarnStackToggle(t *testing.T) {
	var buf bytes.Buffer
	New(Options{ServiceName: "api", Output: &buf, Format: FormatJSON, WarnStack: true}).Warn(context.Background(), "slow")
	assert.Contains(t, lastEntry(t, &buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "api", Output: &buf, Format: FormatJSON}).Warn(context.Background(), "slow")
	assert.NotContains(t, lastEntry(t, &buf), "stack")
}

func TestLevelFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "api", Output: &buf, Format: FormatJSON, Level: zerolog.WarnLevel})
	log.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := ForApp("api", config.AppConfig{LogLevel: "info", LogFormat: FormatConsole})
	log.base = log.base.Output(zerolog.ConsoleWriter{Out: &buf, NoColor: true})
	log.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}
