// internal/logging/testing.go
package logging

import (
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are captured for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates an observing logger at debug level.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns all captured entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// AssertLogged verifies an entry at level containing msgContains was logged.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertField verifies the entries for msg carry a field with key and value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want string) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key == key && field.String == want {
				return
			}
		}
	}
	tb.Errorf("field %q=%q not found in message %q", key, want, msg)
}

// AssertNoSecrets fails if any captured entry carries an unredacted value for
// a key or pattern the default redaction config covers. The check runs
// against the same lists the RedactingEncoder enforces, so the assertion and
// the production behavior cannot drift apart.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()

	redaction := NewDefaultConfig().Redaction
	patterns := make([]*regexp.Regexp, 0, len(redaction.Patterns))
	for _, p := range redaction.Patterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}

	sensitiveKey := func(key string) bool {
		lower := strings.ToLower(key)
		for _, name := range redaction.Fields {
			if strings.Contains(lower, name) {
				return true
			}
		}
		return false
	}

	for _, entry := range t.observed.All() {
		for _, re := range patterns {
			if re.MatchString(entry.Message) {
				tb.Errorf("sensitive pattern in message: %q", entry.Message)
			}
		}

		for _, field := range entry.Context {
			if field.Type != zapcore.StringType {
				continue
			}
			if sensitiveKey(field.Key) && field.String != "" && !strings.Contains(field.String, "[REDACTED") {
				tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
			}
			for _, re := range patterns {
				if re.MatchString(field.String) {
					tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
				}
			}
		}
	}
}
