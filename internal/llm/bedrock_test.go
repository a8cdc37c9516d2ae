package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeRuntime struct {
	body []byte
	err  error
	sent anthropicRequest
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if err := json.Unmarshal(in.Body, &f.sent); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestBedrockChatReturnsSegments(t *testing.T) {
	rt := &fakeRuntime{body: []byte(`{
  "model": "claude",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "tu_1", "name": "email_delete_email", "input": {"email_id": "e004"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`)}
	c := newBedrockWithRuntime(rt, "anthropic.claude", 0)
	resp, err := c.Chat(context.Background(), &ChatRequest{
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "x", Arguments: `{}`}, {ID: "b", Name: "y", Arguments: `not json`}}},
			{Role: RoleTool, ToolCallID: "a", Content: "ok"},
			{Role: RoleTool, ToolCallID: "b", Content: "boom", IsError: true},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if rt.sent.AnthropicVersion != anthropicVersion || rt.sent.MaxTokens != 4096 {
		t.Errorf("request header fields: %+v", rt.sent)
	}
	if len(rt.sent.Messages) != 3 {
		t.Fatalf("tool results should fold into one user turn, got %d messages", len(rt.sent.Messages))
	}
	if n := len(rt.sent.Messages[2].Content); n != 2 || !rt.sent.Messages[2].Content[1].IsError {
		t.Errorf("tool results: %+v", rt.sent.Messages[2].Content)
	}

	segs, ok := resp.Content.([]Segment)
	if !ok || len(segs) != 2 || segs[0].Text != "Let me check." {
		t.Fatalf("content: %#v", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Arguments != `{"email_id": "e004"}` {
		t.Errorf("tool calls: %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("usage: %+v", resp.Usage)
	}
}

func TestBedrockErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		transient bool
	}{
		{&types.ThrottlingException{}, true},
		{&types.ModelTimeoutException{}, true},
		{&types.ValidationException{}, false},
		{&types.AccessDeniedException{}, false},
	}
	for _, tt := range tests {
		c := newBedrockWithRuntime(&fakeRuntime{err: tt.err}, "m", 0)
		_, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
		if got := IsTransient(err); got != tt.transient {
			t.Errorf("%T: transient got %v, want %v", tt.err, got, tt.transient)
		}
		var perm *PermanentError
		if !tt.transient && !errors.As(err, &perm) {
			t.Errorf("%T: expected PermanentError, got %v", tt.err, err)
		}
	}
}
