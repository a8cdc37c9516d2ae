package judge_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/worldbench/internal/judge"
)

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("set REDIS_URL to run Redis tests")
	}
	ctx := context.Background()
	cache, err := judge.NewRedisCache(ctx, url, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	key := judge.CacheKey("test", uuid.NewString())
	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Set(ctx, key, judge.Verdict{Reasoning: "cached", Score: true})
	v, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, judge.Verdict{Reasoning: "cached", Score: true}, v)
}
