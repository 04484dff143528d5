// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore applies sampling to entries below error level. Error and
// above always pass: a remediation failure must never be sampled away.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errors := newBandCore(core, func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	routine := newBandCore(core, func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel
	})

	return zapcore.NewTee(
		errors,
		zapcore.NewSamplerWithOptions(routine, cfg.Tick, cfg.Initial, cfg.Thereafter),
	)
}

// bandCore admits only the levels its predicate accepts, so the two tee
// branches above never double-log an entry.
type bandCore struct {
	zapcore.Core
	admit func(zapcore.Level) bool
}

func newBandCore(core zapcore.Core, admit func(zapcore.Level) bool) zapcore.Core {
	return &bandCore{Core: core, admit: admit}
}

func (c *bandCore) Enabled(lvl zapcore.Level) bool {
	return c.admit(lvl) && c.Core.Enabled(lvl)
}

func (c *bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *bandCore) With(fields []zapcore.Field) zapcore.Core {
	return &bandCore{Core: c.Core.With(fields), admit: c.admit}
}
