package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"trace":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(in), "input %q", in)
	}
}

func TestNewWithWriter_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   []string
	}{
		{format: "text", want: []string{"level=INFO", "msg=cycle", "due=3"}},
		{format: "json", want: []string{`"level":"INFO"`, `"msg":"cycle"`, `"due":3`}},
		{format: "JSON", want: []string{`"msg":"cycle"`}},
		{format: "", want: []string{"msg=cycle"}},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger.NewWithWriter(&buf, "info", tt.format).Info("cycle", "due", 3)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, "warn", "text")

	l.Debug("quote fetched")
	l.Info("filter checked")
	assert.Empty(t, buf.String())

	l.Warn("provider degraded")
	l.Error("delivery failed")
	assert.Contains(t, buf.String(), "provider degraded")
	assert.Contains(t, buf.String(), "delivery failed")
}

func TestNewWithOptions_ServiceAndSource(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithOptions(&buf, logger.Options{
		Level:     "debug",
		Format:    "json",
		AddSource: true,
		Service:   "flight-price-tracker",
	})
	l.Debug("tick")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "flight-price-tracker", rec["service"])
	assert.Equal(t, "tick", rec["msg"])
	assert.Contains(t, rec, "source")
}

func TestNewWithOptions_RedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewWithOptions(&buf, logger.Options{Format: "json"})
	l.Info("provider configured",
		"provider", "skyscanner",
		"api_key", "sk-live-123",
		"bot_token", "999:abc",
		slog.Group("smtp", "host", "mail.example.com", "password", "hunter2"),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-123")
	assert.NotContains(t, out, "999:abc")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"provider":"skyscanner"`)
	assert.Contains(t, out, `"host":"mail.example.com"`)
	assert.Contains(t, out, logger.Redacted)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	l := logger.Discard()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
	l.Error("dropped")
}
