package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const anthropicVersion = "bedrock-2023-05-31"

type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient sends Anthropic Messages requests through Bedrock InvokeModel.
type BedrockClient struct {
	runtime   bedrockInvoker
	modelID   string
	maxTokens int
}

func NewBedrock(ctx context.Context, region, modelID string, maxTokens int) (*BedrockClient, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newBedrockWithRuntime(bedrockruntime.NewFromConfig(cfg), modelID, maxTokens), nil
}

func newBedrockWithRuntime(rt bedrockInvoker, modelID string, maxTokens int) *BedrockClient {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &BedrockClient{runtime: rt, modelID: modelID, maxTokens: maxTokens}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Tools            []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *BedrockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	payload := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        firstPositive(req.MaxTokens, c.maxTokens),
		Temperature:      req.Temperature,
		System:           req.System,
		Messages:         toAnthropicMessages(req.Messages),
	}
	for _, t := range req.Tools {
		payload.Tools = append(payload.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("encoding bedrock request: %w", err)}
	}
	output, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyBedrockError(fmt.Errorf("invoking %s: %w", c.modelID, err))
	}
	var resp anthropicResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("decoding bedrock response: %w", err)
	}
	out := &ChatResponse{
		StopReason: resp.StopReason,
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	segs := make([]Segment, 0, len(resp.Content))
	for _, b := range resp.Content {
		seg := Segment{Type: b.Type, Text: b.Text, ID: b.ID, Name: b.Name}
		if b.Type == "tool_use" {
			args := string(b.Input)
			if args == "" {
				args = "{}"
			}
			json.Unmarshal(b.Input, &seg.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
		segs = append(segs, seg)
	}
	out.Content = segs
	return out, nil
}

// toAnthropicMessages folds tool results into user turns, since the
// Messages API has no tool role.
func toAnthropicMessages(msgs []Message) []anthropicMessage {
	var out []anthropicMessage
	appendBlock := func(role string, b anthropicBlock) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, b)
			return
		}
		out = append(out, anthropicMessage{Role: role, Content: []anthropicBlock{b}})
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			appendBlock("user", anthropicBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content, IsError: m.IsError})
		case RoleAssistant:
			if m.Content != "" {
				appendBlock("assistant", anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				appendBlock("assistant", anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
		default:
			appendBlock("user", anthropicBlock{Type: "text", Text: m.Content})
		}
	}
	return out
}

func classifyBedrockError(err error) error {
	var (
		throttling  *types.ThrottlingException
		unavailable *types.ServiceUnavailableException
		internal    *types.InternalServerException
		timeout     *types.ModelTimeoutException
		notReady    *types.ModelNotReadyException
	)
	switch {
	case errors.As(err, &throttling), errors.As(err, &unavailable), errors.As(err, &internal),
		errors.As(err, &timeout), errors.As(err, &notReady):
		return &TransientError{Err: err}
	}
	var (
		validation *types.ValidationException
		denied     *types.AccessDeniedException
		notFound   *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &denied), errors.As(err, &notFound):
		return &PermanentError{Err: err}
	}
	return err
}
