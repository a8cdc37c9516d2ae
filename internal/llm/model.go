package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// ParseModel splits a provider-qualified model id such as
// "openai:gpt-4o-mini" or "bedrock:anthropic.claude-3-5-haiku-20241022-v1:0".
// Ids without a known provider prefix default to openai.
func ParseModel(id string) (provider, model string) {
	prefix, rest, ok := strings.Cut(id, ":")
	if ok {
		switch strings.ToLower(prefix) {
		case ProviderOpenAI:
			return ProviderOpenAI, rest
		case ProviderBedrock, "anthropic":
			return ProviderBedrock, rest
		}
	}
	return ProviderOpenAI, id
}

type Options struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AWSRegion     string
	MaxTokens     int
	Retry         RetryConfig
	Logger        zerolog.Logger
}

// New builds a retrying client for the provider named by modelID.
func New(ctx context.Context, modelID string, opts Options) (ChatClient, error) {
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	provider, model := ParseModel(modelID)
	var (
		inner ChatClient
		err   error
	)
	switch provider {
	case ProviderBedrock:
		inner, err = NewBedrock(ctx, opts.AWSRegion, model, opts.MaxTokens)
	default:
		inner, err = NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIBaseURL, model, opts.MaxTokens)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryClient(inner, opts.Retry, opts.Logger.With().Str("model", modelID).Logger()), nil
}
