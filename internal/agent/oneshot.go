package agent

import (
	"context"
	"fmt"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
)

// oneShotAgent answers in a single turn without tools. Useful as a baseline
// for how much a world's tools help.
type oneShotAgent struct {
	deps Deps
}

func (a *oneShotAgent) Run(ctx context.Context, t *task.Task, systemPrompt string, _ *world.Transport) (*result.AgentResult, error) {
	res := &result.AgentResult{}
	resp, err := a.deps.Client.Chat(ctx, &llm.ChatRequest{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: t.Prompt}},
		MaxTokens:   a.deps.MaxTokens,
		Temperature: a.deps.Temperature,
	})
	if err != nil {
		return res, &ExecutionError{TaskID: t.ID, Err: fmt.Errorf("model call: %w", err)}
	}
	res.Turns = 1
	res.TokenUsage = addUsage(res.TokenUsage, resp.Usage)
	text, err := llm.NormalizeContent(resp.Content)
	if err != nil {
		return res, &ExecutionError{TaskID: t.ID, Err: err}
	}
	res.Response = text
	return res, nil
}
