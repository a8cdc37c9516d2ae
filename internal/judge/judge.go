// Package judge asks a model whether an agent response satisfies one rubric
// criterion at a time.
package judge

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/result"
)

const DefaultParseAttempts = 3

type Options struct {
	// Model is the judge model id, used for cache keys and reports.
	Model string
	// ParseAttempts bounds how many times the judge is asked for a
	// readable verdict. Defaults to DefaultParseAttempts.
	ParseAttempts int
	// ParseBackoff is the delay before the second attempt, doubled after.
	ParseBackoff time.Duration
	MaxTokens    int
	Cache        Cache
	Logger       zerolog.Logger
}

type Judge struct {
	client llm.ChatClient
	opts   Options
}

func New(client llm.ChatClient, opts Options) *Judge {
	if opts.ParseAttempts <= 0 {
		opts.ParseAttempts = DefaultParseAttempts
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Judge{client: client, opts: opts}
}

func (j *Judge) Model() string {
	return j.opts.Model
}

// Judge returns the verdict for one criterion. Provider failures and
// unreadable answers are recorded as a failed criterion with the reason;
// only cancellation is returned as an error.
func (j *Judge) Judge(ctx context.Context, req Request) (result.Judgment, error) {
	out := result.Judgment{Criterion: req.Criterion}
	prompt, err := renderPrompt(req)
	if err != nil {
		return out, fmt.Errorf("rendering judge prompt: %w", err)
	}

	key := CacheKey(j.opts.Model, prompt)
	if j.opts.Cache != nil {
		if v, ok := j.opts.Cache.Get(ctx, key); ok {
			out.Verdict, out.Reasoning, out.Cached = v.Score, v.Reasoning, true
			return out, nil
		}
	}

	var lastErr error
	delay := j.opts.ParseBackoff
	for attempt := 1; attempt <= j.opts.ParseAttempts; attempt++ {
		out.Attempts = attempt
		resp, err := j.client.Chat(ctx, &llm.ChatRequest{
			Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			MaxTokens: j.opts.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.Reasoning = fmt.Sprintf("judge request failed: %v", err)
			return out, nil
		}
		text, err := llm.NormalizeContent(resp.Content)
		if err == nil {
			var v *Verdict
			if v, err = ParseVerdict(text); err == nil {
				if j.opts.Cache != nil {
					j.opts.Cache.Set(ctx, key, *v)
				}
				out.Verdict, out.Reasoning = v.Score, v.Reasoning
				return out, nil
			}
		}
		lastErr = err
		j.opts.Logger.Warn().Err(err).Int("attempt", attempt).Str("criterion", truncate(req.Criterion, 80)).Msg("judge response unparseable")

		if attempt < j.opts.ParseAttempts && delay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	out.ParseError = true
	out.Reasoning = fmt.Sprintf("judge gave no readable verdict after %d attempts: %v", out.Attempts, lastErr)
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
