package agent

import (
	"context"
	"fmt"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
)

const (
	planInstruction = "Before doing anything, write a short numbered plan for how you will complete this task. Do not call any tools yet."
	actInstruction  = "Now carry out your plan. Use the tools as needed, then give your final answer."
)

// planActAgent spends one tool-less turn on a plan, then runs the react loop
// with the plan in context.
type planActAgent struct {
	reactAgent
}

func (a *planActAgent) Run(ctx context.Context, t *task.Task, systemPrompt string, transport *world.Transport) (*result.AgentResult, error) {
	res := &result.AgentResult{}
	fail := func(err error) (*result.AgentResult, error) {
		return res, &ExecutionError{TaskID: t.ID, Err: err}
	}

	prompt := llm.Message{Role: llm.RoleUser, Content: t.Prompt}
	resp, err := a.deps.Client.Chat(ctx, &llm.ChatRequest{
		System:      systemPrompt,
		Messages:    []llm.Message{prompt, {Role: llm.RoleUser, Content: planInstruction}},
		MaxTokens:   a.deps.MaxTokens,
		Temperature: a.deps.Temperature,
	})
	if err != nil {
		return fail(fmt.Errorf("planning turn: %w", err))
	}
	res.Turns++
	res.TokenUsage = addUsage(res.TokenUsage, resp.Usage)
	plan, err := llm.NormalizeContent(resp.Content)
	if err != nil {
		return fail(fmt.Errorf("planning turn: %w", err))
	}

	msgs := []llm.Message{
		prompt,
		{Role: llm.RoleAssistant, Content: plan},
		{Role: llm.RoleUser, Content: actInstruction},
	}
	if err := a.loop(ctx, t, systemPrompt, transport, msgs, res); err != nil {
		return fail(err)
	}
	return res, nil
}
