package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// LogTrail writes audit entries to the structured log. It is the trail for
// deployments without a message broker.
type LogTrail struct {
	logger *zap.Logger
}

// NewLogTrail creates a log-backed audit trail.
func NewLogTrail(logger *zap.Logger) *LogTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTrail{logger: logger}
}

// Record logs one entry at info level.
func (l *LogTrail) Record(_ context.Context, entry *recovery.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	l.logger.Info("audit",
		zap.String("action", entry.Action),
		zap.String("resource_id", entry.ResourceID),
		zap.String("status", entry.Status),
		zap.Time("timestamp", ts),
		zap.Any("details", entry.Details),
	)
	return nil
}
