// Command csvclean assesses and cleans CSV and Excel files offline with the
// same pipeline the server runs.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/logging"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	logLevel  string
	logFormat string
	low       float64
	mid       float64
}

func (o *rootOptions) thresholds() cleaning.Thresholds {
	return cleaning.Thresholds{Low: o.low, Mid: o.mid}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "csvclean",
		Short:         "Assess and clean tabular data files",
		Long:          `csvclean scores CSV, TSV and XLSX files for missing values and duplicate rows, suggests a cleaning config and applies it, writing the cleaned tables and reports to a ZIP archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.low < 0 || opts.mid < opts.low {
				return fmt.Errorf("invalid thresholds: need 0 <= --low (%g) <= --mid (%g)", opts.low, opts.mid)
			}
			slog.SetDefault(logging.New(stderr, opts.logLevel, opts.logFormat))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	f.Float64Var(&opts.low, "low", cleaning.DefaultLowThreshold, "upper bound of the GOOD tier in percent")
	f.Float64Var(&opts.mid, "mid", cleaning.DefaultMidThreshold, "upper bound of the WARNING tier in percent")

	root.AddCommand(
		newAssessCmd(opts),
		newSuggestCmd(opts),
		newCleanCmd(opts),
	)
	return root
}
