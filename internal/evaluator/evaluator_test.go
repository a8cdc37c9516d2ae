package evaluator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/worldbench/internal/evaluator"
	"github.com/signalnine/worldbench/internal/judge"
	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/pricing"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
)

// scriptedJudge passes any criterion whose text contains "PASS". Earlier
// criteria answer slower so completion order differs from rubric order.
type scriptedJudge struct {
	calls atomic.Int32
}

func (s *scriptedJudge) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls.Add(1)
	prompt := req.Messages[0].Content
	line := prompt[strings.Index(prompt, "Criterion: "):]
	line = line[:strings.IndexByte(line, '\n')]
	if strings.Contains(line, "#1") {
		time.Sleep(20 * time.Millisecond)
	}
	if strings.Contains(line, "PASS") {
		return &llm.ChatResponse{Content: `{"reasoning": "satisfied", "score": true}`}, nil
	}
	return &llm.ChatResponse{Content: "```json\n{\"reasoning\": \"not satisfied\", \"score\": false}\n```"}, nil
}

func rubric(criteria ...string) []task.Criterion {
	out := make([]task.Criterion, len(criteria))
	for i, c := range criteria {
		out[i] = task.Criterion{Criteria: c}
	}
	return out
}

func writeRun(t *testing.T) string {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "run-1")
	require.NoError(t, os.Mkdir(runDir, 0o755))
	require.NoError(t, result.WriteManifest(runDir, &result.Manifest{RunID: "run-1", Agent: "react", AgentModel: "openai:gpt-test"}))

	results := []*result.TaskResult{
		{
			Task: task.Task{ID: "spam", Domain: "email", Prompt: "Delete spam.", GoldResponse: "Deleted e004.", Rubric: rubric("#1 PASS deleted", "#2 PASS count", "#3 mentions sender")},
			AgentResult: result.AgentResult{
				Response: "Deleted 1 spam email.", Status: result.StatusCompleted, TimeTaken: 2,
				TokenUsage: result.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
			},
		},
		{
			Task: task.Task{ID: "meeting", Domain: "calendar", Prompt: "Book a meeting.", GoldResponse: "Booked.", Rubric: rubric("#1 PASS booked", "#2 correct time")},
			AgentResult: result.AgentResult{
				Response: "Booked it.", Status: result.StatusCompleted, TimeTaken: 4,
				TokenUsage: result.TokenUsage{InputTokens: 200, OutputTokens: 40, TotalTokens: 240},
			},
		},
		{
			Task:        task.Task{ID: "broken", Domain: "email", Prompt: "x", GoldResponse: "y", Rubric: rubric("#1 PASS anything")},
			AgentResult: result.AgentResult{Status: result.StatusFailed, Error: "world unreachable"},
		},
	}
	for _, r := range results {
		require.NoError(t, result.WriteTaskResult(runDir, r))
	}
	return runDir
}

func TestEvaluateGradesEveryCriterionInOrder(t *testing.T) {
	runDir := writeRun(t)
	scripted := &scriptedJudge{}
	opts := evaluator.Options{
		Judge:       judge.New(scripted, judge.Options{Model: "openai:judge", Logger: zerolog.Nop()}),
		Concurrency: 3,
		Pricing:     &pricing.Table{Providers: map[string]map[string]pricing.ModelPricing{"openai": {"gpt-test": {Input: 1, Output: 2}}}},
		Logger:      zerolog.Nop(),
	}

	summary, err := evaluator.Evaluate(context.Background(), runDir, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 5, scripted.calls.Load(), "one judge request per criterion of completed tasks")

	grades, err := result.ReadGrades(runDir)
	require.NoError(t, err)
	require.Len(t, grades.Grades, 2)
	byID := map[string]result.TaskGrade{}
	for _, g := range grades.Grades {
		byID[g.TaskID] = g
	}

	spam := byID["spam"]
	require.Len(t, spam.Judgments, 3)
	for i, j := range spam.Judgments {
		assert.Equal(t, spam.Judgments[i].Criterion, rubric("#1 PASS deleted", "#2 PASS count", "#3 mentions sender")[i].Criteria)
		assert.NotEmpty(t, j.Reasoning)
	}
	assert.Equal(t, 2, spam.Passed)
	assert.Equal(t, 3, spam.Total)
	assert.InDelta(t, 0.6667, spam.Score, 1e-9)
	assert.Equal(t, 1, byID["meeting"].Passed)

	assert.Equal(t, 3, summary.NumTasks)
	assert.Equal(t, 2, summary.GradedTasks)
	assert.Equal(t, 1, summary.ErroredTasks)
	assert.Equal(t, 3, summary.PassedCriteria)
	assert.Equal(t, 5, summary.TotalCriteria)
	assert.InDelta(t, 0.6, summary.PassRate, 1e-9)
	assert.InDelta(t, 3.0, summary.AvgTimeTaken, 1e-9)
	assert.Equal(t, result.TokenUsage{InputTokens: 300, OutputTokens: 60, TotalTokens: 360}, summary.TotalTokenUsage)
	assert.Equal(t, 180, summary.AvgTokenUsage.TotalTokens)
	assert.Equal(t, "react", summary.Agent)
	assert.Equal(t, "openai:judge", summary.JudgeModel)
	assert.InDelta(t, 0.3+0.12, summary.EstimatedCostUSD, 1e-9)

	require.Len(t, summary.Domains, 2)
	assert.Equal(t, result.DomainSummary{Domain: "calendar", Tasks: 1, Passed: 1, Total: 2, PassRate: 0.5}, summary.Domains[0])
	assert.Equal(t, "email", summary.Domains[1].Domain)

	_, err = os.Stat(result.GradePath(runDir, "spam"))
	assert.NoError(t, err)
	_, err = os.Stat(result.GradePath(runDir, "broken"))
	assert.True(t, os.IsNotExist(err), "failed tasks are not graded")

	final, err := result.ReadFinal(runDir)
	require.NoError(t, err)
	assert.Equal(t, summary.PassRate, final.PassRate)
}

func TestEvaluateIsRerunnable(t *testing.T) {
	runDir := writeRun(t)
	opts := evaluator.Options{
		Judge:  judge.New(&scriptedJudge{}, judge.Options{Logger: zerolog.Nop()}),
		Logger: zerolog.Nop(),
	}
	first, err := evaluator.Evaluate(context.Background(), runDir, opts)
	require.NoError(t, err)
	second, err := evaluator.Evaluate(context.Background(), runDir, opts)
	require.NoError(t, err)
	assert.Equal(t, first.PassRate, second.PassRate)

	results, err := result.ListTaskResults(runDir)
	require.NoError(t, err)
	assert.Len(t, results, 3, "evaluation artifacts are not mistaken for task results")
}

func TestEvaluateCancelled(t *testing.T) {
	runDir := writeRun(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := evaluator.Evaluate(ctx, runDir, evaluator.Options{
		Judge:  judge.New(&scriptedJudge{}, judge.Options{Logger: zerolog.Nop()}),
		Logger: zerolog.Nop(),
	})
	assert.Error(t, err)
}
