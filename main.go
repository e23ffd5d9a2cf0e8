package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fin_backend/collector"
	"fin_backend/core"
	"fin_backend/core/validation"
	"fin_backend/db"
	"fin_backend/fimcp"
	"fin_backend/insights"
	"fin_backend/logging"
	"fin_backend/quota"
	"fin_backend/webui"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Service management commands (install/uninstall/start/stop/status)
	if HandleServiceCommand(os.Args) {
		return
	}

	// When launched by the Windows service manager, RunAsService blocks
	// until the service is stopped; interactively it returns false.
	if ran, err := RunAsService(); ran {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Service error: %v\n", err)
			os.Exit(core.ExitCodeError)
		}
		return
	}

	os.Exit(run(signalContext()))
}

// signalContext returns a context cancelled by SIGINT or SIGTERM. The
// cancellation cause records which signal arrived so run can exit with the
// conventional 128+signum code.
func signalContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		cancel(&signalError{sig: <-sigChan})
	}()

	return ctx
}

// signalError carries the terminating signal as a cancellation cause.
type signalError struct {
	sig os.Signal
}

func (e *signalError) Error() string {
	return "received " + e.sig.String()
}

// exitStatus maps a shutdown cause to the process exit code. Cancellation
// without a signal cause (the service manager path) is a clean exit.
func exitStatus(cause error) int {
	var sigErr *signalError
	if !errors.As(cause, &sigErr) {
		return core.ExitCodeSuccess
	}
	if sigErr.sig == syscall.SIGTERM {
		return core.ExitCodeSIGTERM
	}
	return core.ExitCodeSIGINT
}

// run starts the agent and blocks until the context is cancelled. It
// returns the process exit code.
func run(ctx context.Context) int {
	isDevelopment := os.Getenv("DEV_MODE") == "true"

	logger, err := logging.NewLogger(isDevelopment, core.GetEnvOrDefault("LOG_FILE", "./logs/agent.log"))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer logger.Sync()

	// Startup validation before any heavy wiring.
	result := validation.NewSuite().Validate()
	if !result.Success {
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error),
				)
			}
		}
		return core.ExitCodeError
	}

	config, err := core.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return core.ExitCodeError
	}

	logger.Info("Configuration loaded",
		zap.String("provider", config.MCPBaseURL),
		zap.String("subject", config.Subject),
		zap.Duration("collection_interval", config.CollectionInterval),
		zap.Duration("freshness_window", config.FreshnessWindow),
		zap.Int("quota_daily_limit", config.QuotaDailyLimit),
		zap.Int("quota_hourly_limit", config.QuotaHourlyLimit),
		zap.Bool("openai_enabled", config.HasOpenAI()),
		zap.Bool("dev_mode", isDevelopment),
	)

	// Storage: open, migrate, repositories.
	database, err := db.NewDatabaseWithConfig(db.DatabaseConfig{
		Path:           config.DatabasePath,
		MigrationsPath: "file://" + config.MigrationsDir,
	})
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return core.ExitCodeError
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return core.ExitCodeError
	}
	repo := db.NewRepository(database)

	// Provider client.
	client, err := fimcp.NewClient(fimcp.ClientConfig{
		BaseURL:    config.MCPBaseURL,
		Subject:    config.Subject,
		FetchDelay: config.FetchDelay,
		HTTPClient: core.GetHTTPClient(config, config.HTTPTimeout),
	}, logger)
	if err != nil {
		logger.Error("Failed to create provider client", zap.Error(err))
		return core.ExitCodeError
	}

	// Quota ledger, run statistics, trigger policy.
	quotaManager := quota.NewManager(config.QuotaStatePath, config.QuotaDailyLimit, config.QuotaHourlyLimit, logger)
	stats := collector.NewRunStats()
	trigger := collector.NewTriggerPolicy(collector.TriggerConfig{
		QuotaCost:       config.TriggerQuotaCost,
		FreshnessWindow: config.FreshnessWindow,
		RecencyWindow:   config.RecencyWindow,
	}, quotaManager, repo, stats, config.Subject, logger)

	// Insight generation. Without an OpenAI key the coordinator falls back
	// to deterministic summaries.
	var generator insights.Generator
	if aiClient := core.NewAIClient(config); aiClient != nil {
		generator = aiClient
	} else {
		logger.Warn("OPENAI_API_KEY not set, insights will use deterministic summaries")
	}
	coordinator := insights.NewCoordinator(insights.Config{
		Subject:   config.Subject,
		QuotaCost: config.AnalysisQuotaCost,
	}, repo, quotaManager, stats, generator, logger)

	agent := collector.New(collector.Config{
		Interval:      config.CollectionInterval,
		StopTimeout:   config.StopTimeout,
		RetentionDays: core.ParseIntEnv("RETENTION_DAYS", 0),
	}, client, database, repo, stats, trigger, coordinator, logger)

	// Ops surface.
	guard, err := webui.NewPasswordGuard(config.OpsPassword, logger)
	if err != nil {
		logger.Error("Failed to initialize ops authentication", zap.Error(err))
		return core.ExitCodeError
	}
	server, err := webui.NewServer(webui.ServerConfig{
		Port:        config.Port,
		ProviderURL: config.MCPBaseURL,
		Interval:    config.CollectionInterval,
	}, guard, agent, coordinator, repo, quotaManager, client, logger)
	if err != nil {
		logger.Error("Failed to create ops server", zap.Error(err))
		return core.ExitCodeError
	}

	agent.Start()
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info("Financial data agent running",
		zap.String("ops_addr", server.Addr()),
		zap.Duration("interval", config.CollectionInterval),
	)

	status := core.ExitCodeSuccess
	select {
	case <-ctx.Done():
		status = exitStatus(context.Cause(ctx))
		if core.IsSignalExit(status) {
			logger.Info("Shutting down...",
				zap.String("reason", core.ExitCodeName(status)))
		} else {
			logger.Info("Shutdown requested. Shutting down...")
		}
	case err := <-serverErr:
		if err != nil {
			logger.Error("Ops server failed", zap.Error(err))
			status = core.ExitCodeError
		}
	}

	agent.Stop()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Warn("Ops server shutdown error", zap.Error(err))
	}

	logger.Info("Goodbye!")
	return status
}
