package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/correlator/pkg/cli"
	"mercator-hq/correlator/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file with environment overrides and report every
invalid field.

Examples:
  correlator validate --config config.yaml
  CORRELATOR_SERVER_ENGINE=gin correlator validate -c config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		errs := cli.ConfigErrors(err)
		for _, e := range errs {
			fmt.Fprintf(out, "✗ %s\n", e.Error())
		}
		return cli.NewConfigError("", fmt.Sprintf("%d invalid setting(s)", len(errs)))
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	if verbose {
		fmt.Fprintf(out, "  service:    %s\n", cfg.Telemetry.ServiceName)
		fmt.Fprintf(out, "  listen:     %s (%s)\n", cfg.Server.ListenAddress, cfg.Server.Engine)
		fmt.Fprintf(out, "  tracing:    %t\n", cfg.Telemetry.Tracing.Enabled)
		fmt.Fprintf(out, "  metrics:    %t\n", cfg.Telemetry.Metrics.IsEnabled())
		fmt.Fprintf(out, "  exclusions: %v\n", cfg.Correlation.Exclusions)
	}
	return nil
}
