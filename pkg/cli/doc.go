/*
Package cli provides the helpers shared by the correlator commands.

Output Formatting:

Command results are rendered as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Values implementing TextWriter control their own text rendering; anything
else is printed with %v.

Signal Handling:

SignalContext is cancelled on SIGINT or SIGTERM. ReloadSignals delivers a
notification on every SIGHUP until its context is done:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	for range cli.ReloadSignals(ctx) {
		// re-read the configuration
	}

Exit Codes:

ExitCode maps an error returned by a command to the process exit status.
*/
package cli
