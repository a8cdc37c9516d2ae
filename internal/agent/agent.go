// Package agent runs one model-backed agent against one task, optionally
// with a world's tools attached.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/toolbox"
	"github.com/signalnine/worldbench/internal/world"
)

// Agent turns a task prompt into a final response. On failure the partial
// result (usage, tool trace) is returned alongside an *ExecutionError.
type Agent interface {
	Run(ctx context.Context, t *task.Task, systemPrompt string, transport *world.Transport) (*result.AgentResult, error)
}

type Kind string

const (
	KindReact   Kind = "react"
	KindPlanAct Kind = "plan-act"
	KindOneShot Kind = "oneshot"
)

func Kinds() []Kind {
	return []Kind{KindReact, KindPlanAct, KindOneShot}
}

// ParseKind maps a CLI or config value onto a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", &ConfigurationError{Msg: fmt.Sprintf("unknown agent %q (available: %s)", s, joinKinds())}
}

func joinKinds() string {
	names := make([]string, 0, 3)
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// Toolbox is the slice of a toolbox.Session an agent needs.
type Toolbox interface {
	Tools(ctx context.Context) ([]llm.ToolDefinition, error)
	Call(ctx context.Context, name string, args json.RawMessage) (string, bool, error)
	Close() error
}

type ConnectFunc func(ctx context.Context, t *world.Transport) (Toolbox, error)

// Deps is everything a backend needs besides the task.
type Deps struct {
	Client      llm.ChatClient
	MaxTurns    int
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
	// Connect opens the world session; defaults to toolbox.Connect.
	Connect ConnectFunc
	Now     func() time.Time
}

const DefaultMaxTurns = 20

// New builds the backend for kind.
func New(kind Kind, deps Deps) (Agent, error) {
	if deps.Client == nil {
		return nil, &ConfigurationError{Msg: "agent needs a model client"}
	}
	if deps.MaxTurns <= 0 {
		deps.MaxTurns = DefaultMaxTurns
	}
	if deps.Connect == nil {
		deps.Connect = func(ctx context.Context, t *world.Transport) (Toolbox, error) {
			return toolbox.Connect(ctx, t)
		}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	switch kind {
	case KindReact:
		return &reactAgent{deps: deps}, nil
	case KindPlanAct:
		return &planActAgent{reactAgent{deps: deps}}, nil
	case KindOneShot:
		return &oneShotAgent{deps: deps}, nil
	}
	return nil, &ConfigurationError{Msg: fmt.Sprintf("unknown agent %q (available: %s)", kind, joinKinds())}
}

func addUsage(total result.TokenUsage, u llm.Usage) result.TokenUsage {
	return total.Add(result.TokenUsage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
	})
}
