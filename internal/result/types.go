package result

import (
	"encoding/json"
	"time"

	"github.com/signalnine/worldbench/internal/task"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum. A zero TotalTokens on either side is
// treated as input+output.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.total() + o.total(),
	}
}

func (u TokenUsage) total() int {
	if u.TotalTokens == 0 {
		return u.InputTokens + u.OutputTokens
	}
	return u.TotalTokens
}

type ToolCallRecord struct {
	Turn       int             `json:"turn"`
	Tool       string          `json:"tool"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     string          `json:"result"`
	IsError    bool            `json:"is_error"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMS int64           `json:"duration_ms"`
}

// AgentResult is what one agent produced for one task.
type AgentResult struct {
	Response   string           `json:"agent_response"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	TokenUsage TokenUsage       `json:"token_usage"`
	Turns      int              `json:"turns"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	TimeTaken  float64          `json:"time_taken"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// TaskResult is the persisted <task_id>.json artifact: the task plus the
// agent's result, so evaluation needs nothing but the run directory.
type TaskResult struct {
	task.Task
	AgentResult
}

type Judgment struct {
	Criterion  string `json:"criterion"`
	Verdict    bool   `json:"verdict"`
	Reasoning  string `json:"reasoning"`
	Attempts   int    `json:"attempts"`
	ParseError bool   `json:"parse_error,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

type TaskGrade struct {
	TaskID     string     `json:"task_id"`
	Domain     string     `json:"domain"`
	Prompt     string     `json:"prompt"`
	Response   string     `json:"agent_response"`
	Judgments  []Judgment `json:"judgments"`
	Passed     int        `json:"passed"`
	Total      int        `json:"total"`
	Score      float64    `json:"score"`
	TokenUsage TokenUsage `json:"token_usage"`
	TimeTaken  float64    `json:"time_taken"`
}

type Grades struct {
	RunID  string      `json:"run_id"`
	Grades []TaskGrade `json:"grades"`
}

type DomainSummary struct {
	Domain   string  `json:"domain"`
	Tasks    int     `json:"tasks"`
	Passed   int     `json:"passed"`
	Total    int     `json:"total"`
	PassRate float64 `json:"pass_rate"`
}

type FinalSummary struct {
	RunID            string          `json:"run_id"`
	Agent            string          `json:"agent"`
	AgentModel       string          `json:"agent_model,omitempty"`
	JudgeModel       string          `json:"judge_model,omitempty"`
	NumTasks         int             `json:"num_tasks"`
	GradedTasks      int             `json:"graded_tasks"`
	ErroredTasks     int             `json:"errored_tasks"`
	PassedCriteria   int             `json:"passed_criteria"`
	TotalCriteria    int             `json:"total_criteria"`
	PassRate         float64         `json:"pass_rate"`
	AvgScore         float64         `json:"avg_score"`
	AvgTimeTaken     float64         `json:"avg_time_taken"`
	TotalTokenUsage  TokenUsage      `json:"total_token_usage"`
	AvgTokenUsage    TokenUsage      `json:"avg_token_usage"`
	EstimatedCostUSD float64         `json:"estimated_cost_usd,omitempty"`
	Domains          []DomainSummary `json:"domains"`
	JudgeParseErrors int             `json:"judge_parse_errors"`
	EvaluatedAt      time.Time       `json:"evaluated_at"`
}

type Manifest struct {
	RunID        string            `json:"run_id"`
	Agent        string            `json:"agent"`
	AgentModel   string            `json:"agent_model"`
	World        string            `json:"world,omitempty"`
	Isolation    string            `json:"isolation,omitempty"`
	TasksDir     string            `json:"tasks_dir"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Status       Status            `json:"status"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at,omitempty"`
	NumTasks     int               `json:"num_tasks"`
	TaskIDs      []string          `json:"task_ids"`
	Counts       map[Status]int    `json:"counts,omitempty"`
	Skipped      map[string]string `json:"skipped,omitempty"`
}
