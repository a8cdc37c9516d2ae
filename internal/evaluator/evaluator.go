// Package evaluator grades a finished run directory with a judge and writes
// the per-task, per-run and summary artifacts.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/signalnine/worldbench/internal/judge"
	"github.com/signalnine/worldbench/internal/pricing"
	"github.com/signalnine/worldbench/internal/result"
)

const DefaultConcurrency = 4

type Options struct {
	Judge       *judge.Judge
	Concurrency int
	// Pricing estimates agent cost from token usage; nil skips it.
	Pricing *pricing.Table
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Evaluate grades every completed task in runDir. It can be re-run: earlier
// evaluation artifacts are replaced, task results are never touched.
func Evaluate(ctx context.Context, runDir string, opts Options) (*result.FinalSummary, error) {
	if opts.Judge == nil {
		return nil, fmt.Errorf("no judge configured")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	results, err := result.ListTaskResults(runDir)
	if err != nil {
		return nil, err
	}
	manifest, err := result.ReadManifest(runDir)
	if err != nil {
		opts.Logger.Warn().Err(err).Msg("no manifest; agent details missing from summary")
		manifest = &result.Manifest{}
	}
	runID := manifest.RunID
	if runID == "" {
		runID = filepath.Base(filepath.Clean(runDir))
	}

	var graded []*result.TaskResult
	errored := 0
	for _, r := range results {
		if r.Status == result.StatusCompleted {
			graded = append(graded, r)
			continue
		}
		errored++
		opts.Logger.Info().Str("task", r.ID).Str("status", string(r.Status)).Msg("not graded")
	}
	opts.Logger.Info().Int("tasks", len(results)).Int("graded", len(graded)).Int("errored", errored).Msg("evaluating run")

	judgments, err := judgeAll(ctx, opts, graded)
	if err != nil {
		return nil, err
	}

	grades := make([]result.TaskGrade, len(graded))
	for i, r := range graded {
		grades[i] = gradeTask(r, judgments[i])
		if err := result.WriteGrade(runDir, &grades[i]); err != nil {
			return nil, err
		}
		opts.Logger.Info().
			Str("task", r.ID).
			Int("passed", grades[i].Passed).
			Int("total", grades[i].Total).
			Msg("task graded")
	}
	if err := result.WriteGrades(runDir, &result.Grades{RunID: runID, Grades: grades}); err != nil {
		return nil, err
	}

	summary := summarize(runID, manifest, grades, len(results), errored)
	summary.JudgeModel = opts.Judge.Model()
	summary.EvaluatedAt = opts.Now().UTC()
	if opts.Pricing != nil && manifest.AgentModel != "" {
		var total result.TokenUsage
		for _, r := range results {
			total = total.Add(r.TokenUsage)
		}
		summary.EstimatedCostUSD = opts.Pricing.ModelCost(manifest.AgentModel, total.InputTokens, total.OutputTokens)
	}
	if err := result.WriteFinal(runDir, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// judgeAll issues one judge request per (task, criterion) pair, bounded by
// opts.Concurrency. Verdicts are stored by index, so they come back in
// rubric order regardless of completion order.
func judgeAll(ctx context.Context, opts Options, graded []*result.TaskResult) ([][]result.Judgment, error) {
	out := make([][]result.Judgment, len(graded))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, r := range graded {
		out[i] = make([]result.Judgment, len(r.Rubric))
		for k, c := range r.Rubric {
			req := judge.Request{
				Criterion:    c.Criteria,
				Prompt:       r.Prompt,
				Response:     r.Response,
				GoldResponse: r.GoldResponse,
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				j, err := opts.Judge.Judge(gctx, req)
				if err != nil {
					return fmt.Errorf("judging %s criterion %d: %w", r.ID, k+1, err)
				}
				out[i][k] = j
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func gradeTask(r *result.TaskResult, judgments []result.Judgment) result.TaskGrade {
	g := result.TaskGrade{
		TaskID:     r.ID,
		Domain:     r.Domain,
		Prompt:     r.Prompt,
		Response:   r.Response,
		Judgments:  judgments,
		Total:      len(judgments),
		TokenUsage: r.TokenUsage,
		TimeTaken:  r.TimeTaken,
	}
	for _, j := range judgments {
		if j.Verdict {
			g.Passed++
		}
	}
	if g.Total > 0 {
		g.Score = round(float64(g.Passed)/float64(g.Total), 4)
	}
	return g
}

func summarize(runID string, m *result.Manifest, grades []result.TaskGrade, numTasks, errored int) *result.FinalSummary {
	s := &result.FinalSummary{
		RunID:        runID,
		Agent:        m.Agent,
		AgentModel:   m.AgentModel,
		NumTasks:     numTasks,
		GradedTasks:  len(grades),
		ErroredTasks: errored,
		Domains:      []result.DomainSummary{},
	}
	domains := map[string]*result.DomainSummary{}
	var scoreSum, timeSum float64
	for _, g := range grades {
		s.PassedCriteria += g.Passed
		s.TotalCriteria += g.Total
		s.TotalTokenUsage = s.TotalTokenUsage.Add(g.TokenUsage)
		scoreSum += g.Score
		timeSum += g.TimeTaken
		for _, j := range g.Judgments {
			if j.ParseError {
				s.JudgeParseErrors++
			}
		}
		d, ok := domains[g.Domain]
		if !ok {
			d = &result.DomainSummary{Domain: g.Domain}
			domains[g.Domain] = d
		}
		d.Tasks++
		d.Passed += g.Passed
		d.Total += g.Total
	}
	if s.TotalCriteria > 0 {
		s.PassRate = round(float64(s.PassedCriteria)/float64(s.TotalCriteria), 4)
	}
	if n := len(grades); n > 0 {
		s.AvgScore = round(scoreSum/float64(n), 4)
		s.AvgTimeTaken = round(timeSum/float64(n), 3)
		t := s.TotalTokenUsage
		s.AvgTokenUsage = result.TokenUsage{
			InputTokens:  int(math.Round(float64(t.InputTokens) / float64(n))),
			OutputTokens: int(math.Round(float64(t.OutputTokens) / float64(n))),
			TotalTokens:  int(math.Round(float64(t.TotalTokens) / float64(n))),
		}
	}
	for _, d := range domains {
		if d.Total > 0 {
			d.PassRate = round(float64(d.Passed)/float64(d.Total), 4)
		}
		s.Domains = append(s.Domains, *d)
	}
	sort.Slice(s.Domains, func(i, j int) bool { return s.Domains[i].Domain < s.Domains[j].Domain })
	return s
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
