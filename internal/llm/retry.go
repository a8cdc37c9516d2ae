package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	JitterFactor float64       `yaml:"jitter"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     20 * time.Second,
		JitterFactor: 0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	return c
}

// Backoff returns the delay before retry number attempt (1-based):
// BaseDelay doubled per attempt, capped at MaxDelay, plus or minus jitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

// RetryClient retries transient failures of the wrapped client.
type RetryClient struct {
	inner  ChatClient
	cfg    RetryConfig
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryClient(inner ChatClient, cfg RetryConfig, logger zerolog.Logger) *RetryClient {
	return &RetryClient{inner: inner, cfg: cfg.withDefaults(), logger: logger, sleep: sleepCtx}
}

func (c *RetryClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return nil, err
			}
			return nil, &PermanentError{Err: err}
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		delay := c.cfg.Backoff(attempt)
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("model call failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
