package llm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/llm/mocks"
)

func fastRetry(attempts int) llm.RetryConfig {
	return llm.RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryClientRecoversFromTransientErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockChatClient(ctrl)
	want := &llm.ChatResponse{Content: "ok"}
	gomock.InOrder(
		inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, &llm.TransientError{Err: errors.New("429")}),
		inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("read: connection reset by peer")),
		inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(want, nil),
	)

	c := llm.NewRetryClient(inner, fastRetry(4), zerolog.Nop())
	got, err := c.Chat(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestRetryClientStopsOnPermanentError(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockChatClient(ctrl)
	inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, errors.New("invalid api key")).Times(1)

	c := llm.NewRetryClient(inner, fastRetry(4), zerolog.Nop())
	_, err := c.Chat(context.Background(), &llm.ChatRequest{})
	var perm *llm.PermanentError
	assert.True(t, errors.As(err, &perm), "got %v", err)
}

func TestRetryClientGivesUpAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockChatClient(ctrl)
	inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, &llm.TransientError{Err: errors.New("503")}).Times(3)

	c := llm.NewRetryClient(inner, fastRetry(3), zerolog.Nop())
	_, err := c.Chat(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryClientHonoursCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockChatClient(ctrl)
	inner.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, &llm.TransientError{Err: errors.New("503")}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := llm.NewRetryClient(inner, llm.RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}, zerolog.Nop())
	_, err := c.Chat(ctx, &llm.ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{&llm.TransientError{Err: errors.New("x")}, true},
		{&llm.PermanentError{Err: errors.New("timeout")}, false},
		{errors.New("ThrottlingException: Rate exceeded"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("ValidationException: bad input"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, llm.IsTransient(tt.err), "%v", tt.err)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := llm.RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(8))
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		id, provider, model string
	}{
		{"openai:gpt-4o-mini", llm.ProviderOpenAI, "gpt-4o-mini"},
		{"gpt-4o", llm.ProviderOpenAI, "gpt-4o"},
		{"bedrock:anthropic.claude-3-5-haiku-20241022-v1:0", llm.ProviderBedrock, "anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"anthropic:claude-haiku-4-5", llm.ProviderBedrock, "claude-haiku-4-5"},
		{"meta-llama/llama-3:8b", llm.ProviderOpenAI, "meta-llama/llama-3:8b"},
	}
	for _, tt := range tests {
		p, m := llm.ParseModel(tt.id)
		assert.Equal(t, tt.provider, p, tt.id)
		assert.Equal(t, tt.model, m, tt.id)
	}
}
