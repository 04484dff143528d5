// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Dual output (stdout + OpenTelemetry)
//   - Automatic context field injection (trace_id, report scope, request_id)
//   - Defense-in-depth secret redaction
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx := logging.WithReportScope(ctx, "payments", "401")
//	logger.Info(ctx, "remediation started", zap.String("action", "token_refresh"))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-08-30T10:15:30Z",
//	  "level": "info",
//	  "msg": "remediation started",
//	  "trace_id": "abc123",
//	  "report.service_id": "payments",
//	  "report.error_class": "401",
//	  "action": "token_refresh"
//	}
//
// # Secret Redaction
//
// Secrets are redacted at multiple layers:
//  1. Encoder-level field name filtering
//  2. Encoder-level pattern matching
//
// Use helpers for manual redaction:
//
//	logger.Info(ctx, "auth received",
//	    logging.RedactedString("authorization", authHeader))
//
// Redaction matters here: the advisor API key and the vault's rotated
// credentials both pass close to log statements.
//
// # Sampling
//
// Below-error entries are sampled once the configured burst is exhausted;
// error and above always pass. Disable for debugging:
//
//	cfg.Sampling.Enabled = false
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
//
// # Concurrency Safety
//
// Logger is safe for concurrent use. Child loggers created with With are
// independent and do not affect parent or siblings.
package logging
