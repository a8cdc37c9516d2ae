package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/signalnine/worldbench/internal/result"
)

// RunSummary is one row of a report: the headline numbers of an evaluated run.
type RunSummary struct {
	RunID        string  `json:"run_id"`
	Agent        string  `json:"agent"`
	AgentModel   string  `json:"agent_model"`
	Tasks        int     `json:"tasks"`
	Errored      int     `json:"errored"`
	PassRate     float64 `json:"pass_rate"`
	AvgScore     float64 `json:"avg_score"`
	AvgTimeTaken float64 `json:"avg_time_taken"`
	AvgTokens    int     `json:"avg_tokens"`
	CostUSD      float64 `json:"estimated_cost_usd"`
}

type runReport struct {
	Summary RunSummary             `json:"summary"`
	Domains []result.DomainSummary `json:"domains,omitempty"`
	Tasks   []result.TaskGrade     `json:"tasks,omitempty"`
	final   *result.FinalSummary
}

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Generate reads the evaluation artifacts of each run directory and writes a
// report. A single run also gets a per-domain and per-task breakdown.
func Generate(runDirs []string, format string, w io.Writer) error {
	if len(runDirs) == 0 {
		return fmt.Errorf("no runs to report")
	}
	reports := make([]*runReport, 0, len(runDirs))
	for _, dir := range runDirs {
		r, err := load(dir, len(runDirs) == 1)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	switch format {
	case "markdown":
		return writeMarkdown(reports, w)
	case "json":
		return writeJSON(reports, w)
	case "table", "":
		return writeTable(reports, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func load(runDir string, detailed bool) (*runReport, error) {
	final, err := result.ReadFinal(runDir)
	if err != nil {
		return nil, fmt.Errorf("run %s has not been evaluated: %w", runDir, err)
	}
	r := &runReport{final: final, Summary: RunSummary{
		RunID:        final.RunID,
		Agent:        final.Agent,
		AgentModel:   final.AgentModel,
		Tasks:        final.NumTasks,
		Errored:      final.ErroredTasks,
		PassRate:     final.PassRate,
		AvgScore:     final.AvgScore,
		AvgTimeTaken: final.AvgTimeTaken,
		AvgTokens:    final.AvgTokenUsage.TotalTokens,
		CostUSD:      final.EstimatedCostUSD,
	}}
	if !detailed {
		return r, nil
	}
	r.Domains = final.Domains
	grades, err := result.ReadGrades(runDir)
	if err != nil {
		return nil, err
	}
	r.Tasks = grades.Grades
	return r, nil
}

func writeTable(reports []*runReport, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tAGENT\tMODEL\tTASKS\tERRORED\tPASS RATE\tAVG SCORE\tAVG TIME\tAVG TOKENS\tCOST")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, r := range reports {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.1f%%\t%.3f\t%.1fs\t%d\t$%.4f\n",
			shortRunID(s.RunID), s.Agent, s.AgentModel, s.Tasks, s.Errored,
			s.PassRate*100, s.AvgScore, s.AvgTimeTaken, s.AvgTokens, s.CostUSD)
	}
	if len(reports) == 1 {
		r := reports[0]
		if len(r.Domains) > 0 {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "DOMAIN\tTASKS\tPASSED\tCRITERIA\tPASS RATE")
			for _, d := range r.Domains {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\n", d.Domain, d.Tasks, d.Passed, d.Total, d.PassRate*100)
			}
		}
		if len(r.Tasks) > 0 {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "TASK\tCRITERION\tVERDICT")
			for _, g := range r.Tasks {
				for _, j := range g.Judgments {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", g.TaskID, clip(j.Criterion, 60), verdictLabel(j))
				}
			}
		}
	}
	return tw.Flush()
}

func writeMarkdown(reports []*runReport, w io.Writer) error {
	fmt.Fprintln(w, "| Run | Agent | Model | Tasks | Errored | Pass Rate | Avg Score | Avg Time | Avg Tokens | Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|---|")
	for _, r := range reports {
		s := r.Summary
		fmt.Fprintf(w, "| %s | %s | %s | %d | %d | %.1f%% | %.3f | %.1fs | %d | $%.4f |\n",
			shortRunID(s.RunID), s.Agent, s.AgentModel, s.Tasks, s.Errored,
			s.PassRate*100, s.AvgScore, s.AvgTimeTaken, s.AvgTokens, s.CostUSD)
	}
	if len(reports) != 1 {
		return nil
	}
	for _, g := range reports[0].Tasks {
		fmt.Fprintf(w, "\n### %s (%d/%d)\n\n", g.TaskID, g.Passed, g.Total)
		for _, j := range g.Judgments {
			mark := "x"
			if !j.Verdict {
				mark = " "
			}
			fmt.Fprintf(w, "- [%s] %s\n", mark, j.Criterion)
		}
	}
	return nil
}

func writeJSON(reports []*runReport, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(reports) == 1 {
		return enc.Encode(reports[0])
	}
	rows := make([]RunSummary, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, r.Summary)
	}
	return enc.Encode(rows)
}

func verdictLabel(j result.Judgment) string {
	switch {
	case j.ParseError:
		return failLabel("FAIL (unparsed)")
	case j.Verdict:
		return passLabel("PASS")
	default:
		return failLabel("FAIL")
	}
}

func shortRunID(id string) string {
	if len(id) > 8 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
