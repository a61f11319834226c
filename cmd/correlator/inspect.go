package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mercator-hq/correlator/pkg/cli"
	"mercator-hq/correlator/pkg/telemetry/propagation"
)

var inspectFlags struct {
	headers      []string
	customHeader string
	noGenerate   bool
	output       string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how request headers resolve to a trace identity",
	Long: `Evaluate a set of request headers the way the server does and report
every candidate trace header, whether it parsed, and which one wins.

Headers are given as "Name: value" (or Name=value) and may be repeated.
The custom header and the generation setting come from the configuration
unless overridden by flags.

Examples:
  correlator inspect -H "traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
  correlator inspect -H "x-trace-id: 4bf92f3577b34da6a3ce929d0e0e4736" --output json
  correlator inspect --custom-header x-orders-trace -H "x-orders-trace: abc" --no-generate`,
	Args: cobra.NoArgs,
	RunE: inspectHeaders,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringArrayVarP(&inspectFlags.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	inspectCmd.Flags().StringVar(&inspectFlags.customHeader, "custom-header", "", "override correlation.custom_header")
	inspectCmd.Flags().BoolVar(&inspectFlags.noGenerate, "no-generate", false, "fail instead of generating a trace id")
	inspectCmd.Flags().StringVarP(&inspectFlags.output, "output", "o", "text", "output format: text, json")
}

func inspectHeaders(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(inspectFlags.output)
	if err != nil {
		return err
	}

	h, err := parseHeaders(inspectFlags.headers)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pcfg := propagation.Config{
		CustomHeader: cfg.Correlation.CustomHeader,
		Generate:     cfg.Correlation.ShouldGenerateTraceID(),
	}
	if inspectFlags.customHeader != "" {
		pcfg.CustomHeader = inspectFlags.customHeader
	}
	if inspectFlags.noGenerate {
		pcfg.Generate = false
	}

	report := inspection{Report: propagation.NewExtractor(pcfg).Inspect(h)}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Error != "" {
		return cli.NewCommandError("inspect", fmt.Errorf("%s", report.Error))
	}
	return nil
}

// parseHeaders accepts "Name: value" and "Name=value".
func parseHeaders(raw []string) (http.Header, error) {
	h := make(http.Header, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, ":")
		if !ok {
			name, value, ok = strings.Cut(kv, "=")
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, cli.NewUsageError("invalid header %q: want \"Name: value\"", kv)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// inspection renders a propagation report as a table.
type inspection struct {
	propagation.Report
}

func (r inspection) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tHEADER\tSTATUS\tTRACE ID\tPARENT")
	for _, h := range r.Headers {
		status := "absent"
		switch {
		case h.Valid:
			status = "valid"
		case h.Present:
			status = "invalid"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Source, h.Header, status, dash(h.TraceID), dash(h.ParentSpanID))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Error != "" {
		_, err := fmt.Fprintf(w, "\nerror: %s\n", r.Error)
		return err
	}

	id := r.Identity
	_, err := fmt.Fprintf(w, "\nselected: %s\ntrace_id: %s\nspan_id:  %s\nparent:   %s\nsampled:  %t\n",
		r.Selected, id.TraceID, id.SpanID, dash(id.ParentSpanID), id.Sampled)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
