package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
	"github.com/signalnine/worldbench/internal/world/apps"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [runs|tasks|apps]",
		Short:     "List runs, tasks and available apps",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"runs", "tasks", "apps"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			what := ""
			if len(args) > 0 {
				what = args[0]
			}
			w := cmd.OutOrStdout()
			if what == "" || what == "runs" {
				fmt.Fprintln(w, "Runs:")
				if err := listRuns(cfg.Output, w); err != nil {
					return err
				}
			}
			if what == "" || what == "tasks" {
				fmt.Fprintln(w, "\nTasks:")
				if err := listTasks(cfg.Tasks, w); err != nil {
					return err
				}
			}
			if what == "" || what == "apps" {
				fmt.Fprintln(w, "\nApps:")
				return listApps(w)
			}
			return nil
		},
	}
}

func listRuns(outputDir string, w io.Writer) error {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "  (none in %s)\n", outputDir)
		return nil
	}
	if err != nil {
		return err
	}
	var manifests []*result.Manifest
	evaluated := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(outputDir, e.Name())
		m, err := result.ReadManifest(dir)
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
		if _, err := result.ReadFinal(dir); err == nil {
			evaluated[m.RunID] = true
		}
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].StartedAt.After(manifests[j].StartedAt)
	})
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range manifests {
		eval := ""
		if evaluated[m.RunID] {
			eval = "evaluated"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d/%d completed\t%s\t%s\n",
			m.RunID, m.StartedAt.Local().Format("2006-01-02 15:04"), m.Agent, m.AgentModel,
			m.Counts[result.StatusCompleted], m.NumTasks, m.Status, eval)
	}
	return tw.Flush()
}

func listTasks(dir string, w io.Writer) error {
	tasks, loadErrs, err := task.LoadDir(dir)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "  - %s [%s] %d criteria\n", t.ID, t.Domain, len(t.Rubric))
	}
	for _, le := range loadErrs {
		fmt.Fprintf(w, "  ! %v\n", le)
	}
	return nil
}

func listApps(w io.Writer) error {
	built, err := apps.Build(apps.Names(), &apps.Seed{}, time.Now)
	if err != nil {
		return err
	}
	rt, err := world.Mount(built...)
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, r := range rt.Routes() {
		counts[r.App]++
	}
	for _, name := range rt.Apps() {
		fmt.Fprintf(w, "  - %s (%d tools)\n", name, counts[name])
	}
	return nil
}
