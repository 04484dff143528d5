// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newDualCore builds the output core: redacting stdout encoder, OTEL bridge,
// or a tee of both, with sampling applied on top.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level))
	}

	if cfg.Output.OTEL {
		// Without an explicit provider the bridge falls back to the
		// global OpenTelemetry logger provider.
		opts := []otelzap.Option{}
		if otelProvider != nil {
			opts = append(opts, otelzap.WithLoggerProvider(otelProvider))
		}
		cores = append(cores, otelzap.NewCore("sentineld", opts...))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return newSampledCore(core, cfg.Sampling), nil
}
