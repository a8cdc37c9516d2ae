package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/report"
	"github.com/signalnine/worldbench/internal/result"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-id|run-dir...]",
		Short: "Summarize evaluated runs",
		Long:  "Print the summary of an evaluated run (default: the latest), or compare several runs side by side.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			refs := args
			if len(refs) == 0 {
				refs = []string{""}
			}
			var dirs []string
			for _, ref := range refs {
				dir, err := result.ResolveRunDir(cfg.Output, ref)
				if err != nil {
					return err
				}
				dirs = append(dirs, dir)
			}
			return report.Generate(dirs, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
