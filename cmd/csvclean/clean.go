package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// errStillDirty is returned with --fail-dirty when a cleaned file keeps a
// non-zero score.
var errStillDirty = errors.New("cleaned data still has issues")

type cleanOptions struct {
	configPath string
	out        string
	format     string
	override   bool
	failDirty  bool
}

func newCleanCmd(root *rootOptions) *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean <file>...",
		Short: "Clean files and write the results to a ZIP archive",
		Long: `Clean applies a cleaning config to every file and writes the cleaned tables,
optional train/val/test splits and reports to a ZIP archive. Without --config
the suggested config is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "cleaning config file (.yaml, .yml or .json)")
	f.StringVarP(&opts.out, "out", "o", "cleaned_files.zip", "output archive path")
	f.StringVar(&opts.format, "format", "csv", "output table format: csv or xlsx")
	f.BoolVar(&opts.override, "override-warnings", false, "clean CRITICAL files instead of refusing")
	f.BoolVar(&opts.failDirty, "fail-dirty", false, "exit non-zero when a cleaned file still has issues")
	return cmd
}

func runClean(cmd *cobra.Command, root *rootOptions, opts *cleanOptions, paths []string) error {
	format, err := table.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	var cfg *cleaning.Config
	if opts.configPath != "" {
		if cfg, err = loadConfig(opts.configPath); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	svc := newService(root)
	res, err := uploadPaths(ctx, svc, paths)
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.Filename, s.Reason)
	}
	if cfg == nil {
		cfg = res.SuggestedConfig
	}

	out, err := svc.Run(ctx, core.RunRequest{
		SessionID:        res.SessionID,
		Config:           cfg,
		OverrideWarnings: opts.override,
		OutputFormat:     format,
	})
	if err != nil {
		return err
	}

	if err := writeArchiveFile(opts.out, out); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprint(w, cleaning.Report(out.Results))
	fmt.Fprintf(w, "\nwrote %s (%d of %d files cleaned)\n", opts.out, out.Succeeded(), len(out.Results))

	if opts.failDirty && out.Dirty() {
		return errStillDirty
	}
	return nil
}

// writeArchiveFile writes to a temporary file first so a failed run never
// leaves a truncated archive at path.
func writeArchiveFile(path string, out *core.RunOutcome) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := core.WriteArchive(f, out); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
