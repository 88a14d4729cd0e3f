package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSuggestCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "suggest <file>...",
		Short: "Print a suggested cleaning config as YAML",
		Long:  "Suggest inspects the files and prints a cleaning config to edit and pass to clean --config.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := uploadPaths(cmd.Context(), newService(root), args)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(res.SuggestedConfig)
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, data, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the config to this file instead of stdout")
	return cmd
}
