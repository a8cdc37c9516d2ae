package judge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/signalnine/worldbench/internal/judge"
	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/llm/mocks"
)

var spamReq = judge.Request{
	Criterion:    "States that one spam email was deleted",
	Prompt:       "Delete all spam.",
	Response:     "I deleted 1 spam email.",
	GoldResponse: "Deleted 1 spam email (e004).",
}

func reply(s string) *llm.ChatResponse {
	return &llm.ChatResponse{Content: s}
}

func TestJudgePassesCriterion(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	client.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		require.Len(t, req.Messages, 1)
		body := req.Messages[0].Content
		assert.Contains(t, body, spamReq.Criterion)
		assert.Contains(t, body, spamReq.Response)
		assert.Contains(t, body, spamReq.GoldResponse)
		assert.Empty(t, req.Tools)
		return reply(`{"reasoning": "It says one spam email was deleted.", "score": true}`), nil
	})

	j := judge.New(client, judge.Options{Model: "openai:gpt-4o-mini", Logger: zerolog.Nop()})
	got, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)
	assert.True(t, got.Verdict)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, spamReq.Criterion, got.Criterion)
}

func TestJudgeStopsAfterThreeUnparseableAnswers(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	// gomock fails the test on a fourth call
	client.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(reply("PASS, looks good"), nil).Times(3)

	j := judge.New(client, judge.Options{Logger: zerolog.Nop()})
	got, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)
	assert.False(t, got.Verdict)
	assert.True(t, got.ParseError)
	assert.Equal(t, 3, got.Attempts)
	assert.Contains(t, got.Reasoning, "no readable verdict")
}

func TestJudgeRecoversOnRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(reply(`{"score": true}`), nil),
		client.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(&llm.ChatResponse{
			Content: []llm.Segment{{Type: "text", Text: `{"reasoning": "Matches the gold answer.", "score": false}`}},
		}, nil),
	)

	j := judge.New(client, judge.Options{Logger: zerolog.Nop()})
	got, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)
	assert.False(t, got.Verdict)
	assert.False(t, got.ParseError)
	assert.Equal(t, 2, got.Attempts)
}

func TestJudgeProviderFailureFailsCriterion(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	client.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, &llm.PermanentError{Err: errors.New("invalid api key")})

	j := judge.New(client, judge.Options{Logger: zerolog.Nop()})
	got, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)
	assert.False(t, got.Verdict)
	assert.Contains(t, got.Reasoning, "invalid api key")
}

func TestJudgeCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		cancel()
		return nil, ctx.Err()
	})

	j := judge.New(client, judge.Options{Logger: zerolog.Nop()})
	_, err := j.Judge(ctx, spamReq)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJudgeUsesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockChatClient(ctrl)
	client.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(reply(`{"reasoning": "yes", "score": true}`), nil).Times(1)

	cache, err := judge.NewMemoryCache(16)
	require.NoError(t, err)
	j := judge.New(client, judge.Options{Model: "m", Cache: cache, Logger: zerolog.Nop()})

	first, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)
	second, err := j.Judge(context.Background(), spamReq)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, first.Reasoning, second.Reasoning)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, judge.CacheKey("a", "prompt"), judge.CacheKey("a", "prompt"))
	assert.NotEqual(t, judge.CacheKey("a", "prompt"), judge.CacheKey("b", "prompt"))
	assert.NotEqual(t, judge.CacheKey("ab", "c"), judge.CacheKey("a", "bc"))
}
