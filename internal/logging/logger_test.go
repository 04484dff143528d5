package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		logger, err := NewLogger(NewDefaultConfig(), nil)
		require.NoError(t, err)
		require.NotNil(t, logger)
		require.NotNil(t, logger.Underlying())
	})

	t.Run("invalid format rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Format = "xml"
		_, err := NewLogger(cfg, nil)
		require.Error(t, err)
	})

	t.Run("no outputs rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Output.Stdout = false
		cfg.Output.OTEL = false
		_, err := NewLogger(cfg, nil)
		require.Error(t, err)
	})

	t.Run("bad redaction pattern rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Redaction.Patterns = []string{"("}
		_, err := NewLogger(cfg, nil)
		require.Error(t, err)
	})
}

func TestContextFields_ReportScope(t *testing.T) {
	ctx := WithReportScope(context.Background(), "payments", "401")
	fields := ContextFields(ctx)

	keys := make(map[string]string)
	for _, f := range fields {
		keys[f.Key] = f.String
	}
	assert.Equal(t, "payments", keys["report.service_id"])
	assert.Equal(t, "401", keys["report.error_class"])
}

func TestContextFields_RequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	fields := ContextFields(ctx)

	require.Len(t, fields, 1)
	assert.Equal(t, "request.id", fields[0].Key)
	assert.Equal(t, "req-42", fields[0].String)
}

func TestContextFields_EmptyContext(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestFromContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)

	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()), "missing logger yields nop")
}

func TestTestLogger_CarriesContextFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithReportScope(context.Background(), "billing", "503")

	tl.Info(ctx, "remediation started", zap.String("action", "service_restart"))

	tl.AssertLogged(t, zapcore.InfoLevel, "remediation started")
	tl.AssertField(t, "remediation started", "action", "service_restart")
	tl.AssertField(t, "remediation started", "report.service_id", "billing")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	level, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestTestLogger_AssertNoSecrets(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "credentials rotated", RedactedString("token", "tok-1234"))
	tl.Info(ctx, "routing updated", zap.String("service_id", "payments"))

	tl.AssertNoSecrets(t)
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	t.Run("field name redacted", func(t *testing.T) {
		clone := enc.Clone().(*RedactingEncoder)
		clone.AddString("api_key", "sk-super-secret")
		// Encoded output must not contain the raw value.
		buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
		require.NoError(t, err)
		assert.NotContains(t, buf.String(), "sk-super-secret")
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("value pattern redacted", func(t *testing.T) {
		clone := enc.Clone().(*RedactingEncoder)
		clone.AddString("note", "header was Bearer abc123")
		buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
		require.NoError(t, err)
		assert.NotContains(t, buf.String(), "abc123")
	})

	t.Run("plain values pass through", func(t *testing.T) {
		clone := enc.Clone().(*RedactingEncoder)
		clone.AddString("service_id", "payments")
		buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "payments")
	})
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("token", "abcd")
	assert.Equal(t, "[REDACTED:4]", f.String)
}
