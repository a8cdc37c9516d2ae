package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
)

// reactAgent alternates model turns and tool calls until the model answers
// without calling a tool.
type reactAgent struct {
	deps Deps
}

func (a *reactAgent) Run(ctx context.Context, t *task.Task, systemPrompt string, transport *world.Transport) (*result.AgentResult, error) {
	res := &result.AgentResult{}
	msgs := []llm.Message{{Role: llm.RoleUser, Content: t.Prompt}}
	if err := a.loop(ctx, t, systemPrompt, transport, msgs, res); err != nil {
		return res, &ExecutionError{TaskID: t.ID, Err: err}
	}
	return res, nil
}

func (a *reactAgent) loop(ctx context.Context, t *task.Task, systemPrompt string, transport *world.Transport, msgs []llm.Message, res *result.AgentResult) error {
	log := a.deps.Logger.With().Str("task", t.ID).Logger()

	var (
		box   Toolbox
		tools []llm.ToolDefinition
	)
	if transport != nil {
		var err error
		box, err = a.deps.Connect(ctx, transport)
		if err != nil {
			return fmt.Errorf("world unreachable: %w", err)
		}
		defer box.Close()
		if tools, err = box.Tools(ctx); err != nil {
			return fmt.Errorf("world unreachable: %w", err)
		}
		log.Debug().Int("tools", len(tools)).Str("transport", transport.String()).Msg("connected to world")
	}

	for turn := 1; turn <= a.deps.MaxTurns; turn++ {
		resp, err := a.deps.Client.Chat(ctx, &llm.ChatRequest{
			System:      systemPrompt,
			Messages:    msgs,
			Tools:       tools,
			MaxTokens:   a.deps.MaxTokens,
			Temperature: a.deps.Temperature,
		})
		if err != nil {
			return fmt.Errorf("model call on turn %d: %w", turn, err)
		}
		res.Turns++
		res.TokenUsage = addUsage(res.TokenUsage, resp.Usage)

		text, err := llm.NormalizeContent(resp.Content)
		if err != nil {
			return fmt.Errorf("turn %d: %w", turn, err)
		}
		if len(resp.ToolCalls) == 0 {
			res.Response = text
			return nil
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			out, isErr, rec, err := a.dispatch(ctx, box, turn, tc)
			if err != nil {
				return err
			}
			res.ToolCalls = append(res.ToolCalls, rec)
			log.Debug().Str("tool", tc.Name).Bool("is_error", isErr).Int("turn", turn).Msg("tool call")
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, ToolCallID: tc.ID, Name: tc.Name, Content: out, IsError: isErr})
		}
	}
	return fmt.Errorf("no final answer after %d turns", a.deps.MaxTurns)
}

// dispatch runs one tool call. Bad arguments and tool failures are returned
// as error text for the model; only transport failures are errors.
func (a *reactAgent) dispatch(ctx context.Context, box Toolbox, turn int, tc llm.ToolCall) (string, bool, result.ToolCallRecord, error) {
	rec := result.ToolCallRecord{Turn: turn, Tool: tc.Name, Timestamp: a.deps.Now().UTC()}

	args, err := repairArguments(tc.Arguments)
	if err != nil {
		quoted, _ := json.Marshal(tc.Arguments)
		rec.Arguments = quoted
		rec.Result = fmt.Sprintf("Invalid arguments for %s: %v", tc.Name, err)
		rec.IsError = true
		return rec.Result, true, rec, nil
	}
	rec.Arguments = args

	if box == nil {
		rec.Result = fmt.Sprintf("Tool %s is not available: no world is attached.", tc.Name)
		rec.IsError = true
		return rec.Result, true, rec, nil
	}

	start := a.deps.Now()
	out, isErr, err := box.Call(ctx, tc.Name, args)
	rec.DurationMS = a.deps.Now().Sub(start).Milliseconds()
	if err != nil {
		return "", false, rec, fmt.Errorf("world unreachable: %w", err)
	}
	rec.Result = out
	rec.IsError = isErr
	return out, isErr, rec, nil
}

// repairArguments returns the call arguments as a JSON object, repairing
// malformed model output where possible.
func repairArguments(raw string) (json.RawMessage, error) {
	if raw == "" {
		return json.RawMessage("{}"), nil
	}
	if isObject(raw) {
		return json.RawMessage(raw), nil
	}
	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if !isObject(fixed) {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return json.RawMessage(fixed), nil
}

func isObject(s string) bool {
	var m map[string]any
	return json.Unmarshal([]byte(s), &m) == nil && m != nil
}
