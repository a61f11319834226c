package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/correlator/pkg/cli"
	"mercator-hq/correlator/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "correlator",
	Short: "Correlator - request-scoped telemetry correlation",
	Long: `Correlator serves HTTP with every request correlated under a single
trace identity:
  - Trace context extracted from inbound headers or generated
  - Log records carrying trace, span and request ids
  - Prometheus metrics per route and status
  - Per-request CPU and memory deltas recorded on the span

Without --config the built-in defaults apply. CORRELATOR_* environment
variables override both.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cli.NewUsageError("%v", err)
	})
}

// loadConfig loads --config with environment overrides. Load failures are
// reported as configuration errors.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		errs := cli.ConfigErrors(err)
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, err
	}
	return cfg, nil
}
