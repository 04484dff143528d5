package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// DefaultTaskQueue is the Temporal task queue remediation workflows run on.
const DefaultTaskQueue = "sentineld-remediation"

// WorkflowStarter is the slice of client.Client the service needs. The real
// Temporal client satisfies it.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Config configures the Temporal automation service.
type Config struct {
	// HostPort is the Temporal frontend address, e.g. "localhost:7233".
	HostPort string `koanf:"host_port"`

	// Namespace is the Temporal namespace (default: "default").
	Namespace string `koanf:"namespace"`

	// TaskQueue is the queue remediation workflows are dispatched to
	// (default: DefaultTaskQueue).
	TaskQueue string `koanf:"task_queue"`
}

// Service starts workflows on a Temporal cluster.
type Service struct {
	starter   WorkflowStarter
	taskQueue string
	logger    *zap.Logger
}

// NewService dials Temporal and returns the automation service. The caller
// owns the returned close function.
func NewService(cfg Config, logger *zap.Logger) (*Service, func(), error) {
	if cfg.HostPort == "" {
		return nil, nil, fmt.Errorf("host_port is required")
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dialing temporal: %w", err)
	}
	return NewServiceWithStarter(c, cfg.TaskQueue, logger), c.Close, nil
}

// NewServiceWithStarter wraps an existing starter, which lets tests
// substitute a fake.
func NewServiceWithStarter(starter WorkflowStarter, taskQueue string, logger *zap.Logger) *Service {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		starter:   starter,
		taskQueue: taskQueue,
		logger:    logger,
	}
}

// InitiateWorkflow starts one workflow of workflowType with the given payload
// and returns its identity. Workflow IDs carry a UUID suffix so repeated
// remediations of the same service never collide.
func (s *Service) InitiateWorkflow(ctx context.Context, workflowType string, payload map[string]any) (*recovery.AutomationRun, error) {
	if workflowType == "" {
		return nil, fmt.Errorf("workflow type cannot be empty")
	}

	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-%s", workflowType, uuid.NewString()),
		TaskQueue: s.taskQueue,
	}
	run, err := s.starter.ExecuteWorkflow(ctx, options, workflowType, payload)
	if err != nil {
		return nil, fmt.Errorf("starting workflow %s: %w", workflowType, err)
	}

	s.logger.Info("workflow started",
		zap.String("workflow_type", workflowType),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return &recovery.AutomationRun{AutomationID: run.GetID()}, nil
}
