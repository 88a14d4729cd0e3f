package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/core"
)

func newAssessCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "assess <file>...",
		Short: "Score files for missing values and duplicate rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := uploadPaths(cmd.Context(), newService(root), args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Files   []core.FileStat    `json:"files"`
					Skipped []core.SkippedFile `json:"skipped"`
				}{res.FileStats, res.Skipped})
			}
			return printStats(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assessment as JSON")
	return cmd
}

func printStats(w io.Writer, res *core.UploadResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSCORE\tSEVERITY\tMISSING\tDUPLICATES\tROWS\tCOLUMNS")
	for _, f := range res.FileStats {
		fmt.Fprintf(tw, "%s\t%.2f%%\t%s\t%d\t%d\t%d\t%d\n",
			f.Filename, f.DirtyScore, f.Severity, f.MissingCount, f.DuplicateRows, f.Rows, f.Columns)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(tw, "%s\t-\tSKIPPED\t\t\t\t\n", s.Filename)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.Filename, s.Reason)
	}
	return nil
}
