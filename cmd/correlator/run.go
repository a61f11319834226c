package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/correlator/pkg/cli"
	"mercator-hq/correlator/pkg/config"
	"mercator-hq/correlator/pkg/server"
	"mercator-hq/correlator/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the correlator server",
	Long: `Start the instrumented HTTP server with the specified configuration.

Every request is traced, logged with its trace identity and counted in the
Prometheus metrics. Health, readiness, version and metrics endpoints are
served on the same address.

The log level and the exclusion list are re-read from the configuration
file on SIGHUP, and on every change when correlation.watch is set.

Examples:
  # Start with defaults
  correlator run

  # Start with custom config
  correlator run --config /etc/correlator/config.yaml

  # Override listen address
  correlator run --listen 0.0.0.0:8080

  # Validate config without starting server
  correlator run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

// applyRunFlags applies flag overrides. It runs on every reload so a
// reloaded file cannot undo them.
func applyRunFlags(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose && runFlags.logLevel == "" {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return config.Validate(cfg)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg); err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	tel, err := telemetry.New(cfg, telemetry.Options{Build: buildInfo()})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	logger := tel.Component("cli")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	if err := tel.Start(); err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if cfgFile != "" {
		stopReload, err := startReloaders(ctx, cfg, tel, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer stopReload()
	}

	logger.Info("correlator starting",
		"version", Version,
		"config", cfgFile,
		"service", cfg.Telemetry.ServiceName,
		"tracing", tel.Provider().Enabled(),
		"metrics", cfg.Telemetry.Metrics.IsEnabled(),
	)

	srv := server.New(cfg, tel)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// startReloaders applies the configuration file again on SIGHUP and, when
// correlation.watch is set, whenever the file changes.
func startReloaders(ctx context.Context, cfg *config.Config, tel *telemetry.TelemetryContext, logger *slog.Logger) (func(), error) {
	apply := func(next *config.Config) {
		if err := applyRunFlags(next); err != nil {
			logger.Error("reloaded configuration rejected", "error", err)
			return
		}
		if err := tel.Apply(next); err != nil {
			logger.Error("failed to apply reloaded configuration", "error", err)
		}
	}

	go func() {
		for range cli.ReloadSignals(ctx) {
			logger.Info("SIGHUP received, reloading configuration", "path", cfgFile)
			next, err := config.LoadConfigWithEnvOverrides(cfgFile)
			if err != nil {
				logger.Error("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			apply(next)
		}
	}()

	if !cfg.Correlation.Watch {
		return func() {}, nil
	}

	w, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval, tel.Component("config"))
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.Watch(ctx, apply); err != nil {
			logger.Error("config watcher exited", "error", err)
		}
	}()
	return func() { _ = w.Stop() }, nil
}
