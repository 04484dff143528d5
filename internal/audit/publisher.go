package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// SubjectPrefix is the root of the audit subject hierarchy.
const SubjectPrefix = "sentineld.audit"

// Publisher records audit entries on a NATS subject per action.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewPublisher creates a NATS-backed audit trail.
func NewPublisher(conn *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Record publishes one entry as JSON on "sentineld.audit.<action>".
func (p *Publisher) Record(_ context.Context, entry *recovery.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	subject := Subject(entry.Action)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing audit entry to %s: %w", subject, err)
	}

	p.logger.Debug("audit entry published",
		zap.String("subject", subject),
		zap.String("resource_id", entry.ResourceID),
		zap.String("status", entry.Status),
	)
	return nil
}

// Flush drains pending publishes, for use during shutdown.
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.conn.FlushTimeout(timeout)
}

// Subject returns the NATS subject for an action, sanitized so arbitrary
// action strings cannot inject subject hierarchy tokens.
func Subject(action string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, action)
	if token == "" {
		token = "unknown"
	}
	return SubjectPrefix + "." + token
}
