package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestPublisher_Record(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync(SubjectPrefix + ".>")
	require.NoError(t, err)

	p := NewPublisher(nc, zap.NewNop())
	entry := &recovery.AuditEntry{
		Action:     "token_refresh",
		ResourceID: "payments",
		Status:     recovery.AuditInitiated,
		Details:    map[string]any{"error_class": "401"},
	}
	require.NoError(t, p.Record(context.Background(), entry))
	require.NoError(t, p.Flush(time.Second))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "sentineld.audit.token_refresh", msg.Subject)

	var got recovery.AuditEntry
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "token_refresh", got.Action)
	assert.Equal(t, "payments", got.ResourceID)
	assert.Equal(t, recovery.AuditInitiated, got.Status)
	assert.False(t, got.Timestamp.IsZero(), "timestamp filled in on publish")
}

func TestPublisher_RecordNilEntry(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	p := NewPublisher(nc, zap.NewNop())
	require.Error(t, p.Record(context.Background(), nil))
}

func TestSubject(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{"token_refresh", "sentineld.audit.token_refresh"},
		{"security_lockdown", "sentineld.audit.security_lockdown"},
		{"weird.action", "sentineld.audit.weird_action"},
		{"evil.>", "sentineld.audit.evil__"},
		{"a b", "sentineld.audit.a_b"},
		{"", "sentineld.audit.unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.action))
		})
	}
}

func TestLogTrail_Record(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	trail := NewLogTrail(zap.New(core))

	err := trail.Record(context.Background(), &recovery.AuditEntry{
		Action:     "service_failover",
		ResourceID: "svcB",
		Status:     recovery.AuditSuccess,
	})

	require.NoError(t, err)
	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "service_failover", fields["action"])
	assert.Equal(t, "svcB", fields["resource_id"])
	assert.Equal(t, recovery.AuditSuccess, fields["status"])
}

func TestLogTrail_RecordNilEntry(t *testing.T) {
	trail := NewLogTrail(zap.NewNop())
	require.Error(t, trail.Record(context.Background(), nil))
}
