// Sentineld is an adaptive error-recovery daemon with an HTTP report API.
//
// This binary starts the sentineld HTTP server with full service
// initialization, including the recovery engine, the advisory layer, the
// audit trail, and optional Temporal automation.
//
// Configuration is loaded from a YAML file with environment overrides. See
// internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	sentineld
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9090 ADVISOR_ENABLED=true sentineld
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/advisor"
	"github.com/fyrsmithlabs/sentineld/internal/audit"
	"github.com/fyrsmithlabs/sentineld/internal/automation"
	"github.com/fyrsmithlabs/sentineld/internal/config"
	"github.com/fyrsmithlabs/sentineld/internal/controlplane"
	"github.com/fyrsmithlabs/sentineld/internal/httpapi"
	"github.com/fyrsmithlabs/sentineld/internal/logging"
	"github.com/fyrsmithlabs/sentineld/internal/recovery"
	"github.com/fyrsmithlabs/sentineld/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/sentineld/config.yaml)")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  sentineld           Start the sentineld daemon\n")
			fmt.Fprintf(os.Stderr, "  sentineld version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("sentineld by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the sentineld server and blocks until context is cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Builds the control plane (service registry, credential vault)
//  4. Selects the advisor (LLM or rules table)
//  5. Connects the audit trail (NATS or log-backed)
//  6. Creates the recovery engine and config watcher
//  7. Starts HTTP server
//  8. Performs graceful shutdown on context cancellation
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	// Load configuration
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize telemetry first so the logger can bridge to it
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Observability.EnableTelemetry
	if cfg.Observability.ServiceName != "" {
		telCfg.ServiceName = cfg.Observability.ServiceName
	}
	telCfg.ServiceVersion = version

	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	// Initialize logger. The OTEL output, when enabled, bridges through the
	// global logger provider.
	logCfg := logging.NewDefaultConfig()
	appLogger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = appLogger.Sync() // Best-effort sync on shutdown
	}()
	logger := appLogger.Underlying()

	logger.Info("Starting sentineld",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	// Initialize infrastructure dependencies
	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("Dependencies initialized",
		zap.Bool("nats_connected", deps.natsConn != nil),
		zap.Bool("llm_advisor", cfg.Advisor.Enabled),
		zap.Bool("automation", deps.collab.Automation != nil))

	// Create the recovery engine
	engine, err := recovery.NewService(&recovery.Config{
		DefaultThreshold:    cfg.Recovery.DefaultThreshold,
		Thresholds:          cfg.Recovery.Thresholds,
		ResetInterval:       cfg.Recovery.ResetInterval,
		CollaboratorTimeout: cfg.Recovery.CollaboratorTimeout,
		RecentErrorsLimit:   cfg.Recovery.RecentErrorsLimit,
	}, deps.collab, logger)
	if err != nil {
		return fmt.Errorf("failed to create recovery engine: %w", err)
	}
	defer func() {
		_ = engine.Close()
	}()

	// Watch the config file so threshold edits apply without a restart
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			for class, limit := range next.Recovery.Thresholds {
				if err := engine.SetThreshold(class, limit); err != nil {
					logger.Warn("Ignoring threshold from reloaded config",
						zap.String("error_class", class),
						zap.Int("limit", limit),
						zap.Error(err))
				}
			}
		}, logger)
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("Failed to start config watcher", zap.Error(err))
		} else {
			defer func() {
				_ = watcher.Stop()
			}()
		}
	}

	// Create HTTP server
	srv := httpapi.NewServer(httpapi.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, engine, logger)

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("report_endpoint", "/api/v1/report"),
		zap.String("metrics_endpoint", "/metrics"))

	// Start server (blocks until context cancellation)
	return srv.Start(ctx)
}

// dependencies holds the recovery engine collaborators and the connections
// behind them.
type dependencies struct {
	natsConn      *nats.Conn
	auditFlush    func()
	closeTemporal func()
	collab        recovery.Collaborators
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.auditFlush != nil {
		d.auditFlush()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.closeTemporal != nil {
		d.closeTemporal()
	}
}

// initDependencies builds the collaborator set for the recovery engine.
//
// The control plane is always the in-memory registry and vault. The advisor,
// audit trail, and automation service are selected by configuration:
//
//   - advisor.enabled: LLM advisor with rules fallback, otherwise rules table
//   - audit.nats_url: NATS-backed audit publisher, otherwise log-backed trail
//   - automation.enabled: Temporal workflow client, otherwise none
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	registry := controlplane.NewRegistry(logger)
	vault := controlplane.NewVault(controlplane.DefaultCredentialTTL, logger)
	snapshots := controlplane.NewSnapshotAdapter(registry, vault)

	deps := &dependencies{
		collab: recovery.Collaborators{
			Credentials: vault,
			Registry:    registry,
			Snapshots:   snapshots,
		},
	}

	// Advisor
	if cfg.Advisor.Enabled {
		llm, err := advisor.NewLLM(advisor.Config{
			BaseURL:         cfg.Advisor.BaseURL,
			Model:           cfg.Advisor.Model,
			APIKey:          cfg.Advisor.APIKey,
			MaxRetries:      cfg.Advisor.MaxRetries,
			RetryBaseDelay:  cfg.Advisor.RetryBaseDelay,
			FallbackToRules: cfg.Advisor.FallbackToRules,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM advisor: %w", err)
		}
		deps.collab.Advisor = llm
		logger.Info("LLM advisor initialized",
			zap.String("base_url", cfg.Advisor.BaseURL),
			zap.String("model", cfg.Advisor.Model))
	} else {
		deps.collab.Advisor = advisor.NewRules()
		logger.Info("Rules advisor initialized")
	}

	// Audit trail
	if cfg.Audit.NATSURL != "" {
		nc, err := nats.Connect(cfg.Audit.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Audit.NATSURL, err)
		}
		publisher := audit.NewPublisher(nc, logger)
		deps.natsConn = nc
		deps.auditFlush = func() {
			_ = publisher.Flush(2 * time.Second)
		}
		deps.collab.Audit = publisher
		logger.Info("Connected to NATS", zap.String("url", cfg.Audit.NATSURL))
	} else {
		deps.collab.Audit = audit.NewLogTrail(logger)
	}

	// Automation
	if cfg.Automation.Enabled {
		svc, closeFn, err := automation.NewService(automation.Config{
			HostPort:  cfg.Automation.HostPort,
			Namespace: cfg.Automation.Namespace,
			TaskQueue: cfg.Automation.TaskQueue,
		}, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to create automation service: %w", err)
		}
		deps.closeTemporal = closeFn
		deps.collab.Automation = svc
		logger.Info("Temporal automation initialized",
			zap.String("host_port", cfg.Automation.HostPort),
			zap.String("task_queue", cfg.Automation.TaskQueue))
	}

	return deps, nil
}
