package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/worldbench/internal/llm"
)

func TestOpenAIChatWithTools(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "id": "c1", "object": "chat.completion", "model": "gpt-test",
  "choices": [{
    "index": 0, "finish_reason": "tool_calls",
    "message": {"role": "assistant", "content": "",
      "tool_calls": [{"id": "call_1", "type": "function",
        "function": {"name": "email_list_emails", "arguments": "{\"folder\":\"spam\"}"}}]}
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`))
	}))
	defer srv.Close()

	c, err := llm.NewOpenAI("test-key", srv.URL+"/v1", "gpt-test", 256)
	require.NoError(t, err)
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		System:   "be brief",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Delete all spam."}},
		Tools: []llm.ToolDefinition{{
			Name:       "email_list_emails",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})
	require.NoError(t, err)

	msgs := got["messages"].([]any)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "auto", got["tool_choice"])

	assert.Equal(t, "", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "email_list_emails", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"folder":"spam"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)
}

func TestOpenAIErrorClassification(t *testing.T) {
	for _, tc := range []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
		}))
		c, err := llm.NewOpenAI("k", srv.URL+"/v1", "m", 0)
		require.NoError(t, err)
		_, err = c.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, tc.transient, llm.IsTransient(err), "status %d: %v", tc.status, err)
		if !tc.transient {
			var perm *llm.PermanentError
			assert.True(t, errors.As(err, &perm))
		}
	}
}

func TestNewOpenAIRequiresKeyOrBaseURL(t *testing.T) {
	_, err := llm.NewOpenAI("", "", "gpt-4o", 0)
	assert.Error(t, err)
}
