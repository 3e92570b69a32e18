package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/sentinel/internal/api"
	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/correlate"
	"github.com/streamops/sentinel/internal/daemon"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
	"github.com/streamops/sentinel/internal/metrics"
	"github.com/streamops/sentinel/internal/monitor"
	"github.com/streamops/sentinel/internal/probe"
	"github.com/streamops/sentinel/internal/recovery"
	"github.com/streamops/sentinel/internal/resource"
	"github.com/streamops/sentinel/internal/trend"
)

var runPort int

var runCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor()
	},
}

func init() {
	runCmd.Flags().IntVarP(&runPort, "port", "p", 0, "Override the API port")
	rootCmd.AddCommand(runCmd)
}

func runMonitor() error {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runPort > 0 {
		if runPort > 65535 {
			return fmt.Errorf("invalid port: %d (must be 1-65535)", runPort)
		}
		cfg.API.Port = runPort
	}

	configDir := filepath.Dir(configPath)
	if configDir == "." {
		if absPath, err := filepath.Abs(configPath); err == nil {
			configDir = filepath.Dir(absPath)
		}
	}

	defs, err := cfg.ToDefinitions(configDir)
	if err != nil {
		return fmt.Errorf("resolving services: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	// Refuse to start twice against the same directory
	if err := daemon.CleanupStaleFiles(cwd); err != nil {
		if err == daemon.ErrAlreadyRunning {
			return fmt.Errorf("sentinel is already running in %s", cwd)
		}
		return err
	}
	if err := daemon.EnsureStateDir(cwd); err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(daemon.PIDPath(cwd))
	if err := pidFile.Create(); err != nil {
		return fmt.Errorf("acquiring PID file: %w", err)
	}
	defer pidFile.Release()

	exec := executor.NewShellExecutor()
	probers, err := probe.ForDefinitions(defs, exec)
	if err != nil {
		return fmt.Errorf("building probes: %w", err)
	}

	auditor := audit.NewLog(constants.DefaultAuditBufferSize)
	defer auditor.Close()
	m := metrics.New()

	resources := resource.NewMonitor(cfg.Resources, resource.NewSampler(), exec, logger)
	orchestrator := recovery.NewOrchestrator(cfg.Thresholds, cfg.Backups, cfg.Procedures, exec, probers, auditor, m, logger)
	trends := trend.NewAnalyzer(orchestrator, logger)

	defsByName := make(map[string]domain.ServiceDefinition, len(defs))
	for _, def := range defs {
		defsByName[def.Name] = def
	}
	correlator := correlate.NewAnalyzer(defsByName, logger)

	mon := monitor.New(monitor.Options{
		Thresholds:   cfg.Thresholds,
		Definitions:  defs,
		Probers:      probers,
		Orchestrator: orchestrator,
		Trends:       trends,
		Correlator:   correlator,
		Resources:    resources,
		Audit:        auditor,
		Metrics:      m,
		Logger:       logger,
		Maintenance:  cfg.MaintenanceMode,
	})

	handlers := api.NewHandlers(mon, auditor, m, configPath, logger)
	apiServer := api.NewServer(api.ServerConfig{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
	}, handlers)

	state := &daemon.State{
		PID:        os.Getpid(),
		Port:       cfg.API.Port,
		Host:       cfg.API.Host,
		StartedAt:  time.Now(),
		ConfigFile: configPath,
	}
	if err := state.Write(cwd); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	defer daemon.RemoveState(cwd)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting sentinel",
		"config", configPath,
		"services", len(defs),
		"api", apiServer.Addr(),
		"maintenance_mode", cfg.MaintenanceMode)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server failed", "err", err)
		}
	}()

	monErr := make(chan error, 1)
	go func() {
		monErr <- mon.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		<-monErr
	case err := <-monErr:
		if err != nil && err != context.Canceled {
			logger.Error("monitor stopped", "err", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}
