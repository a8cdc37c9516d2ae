package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMinimal(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	cfg, err := Load("../../testdata/minimal.yaml")
	require.NoError(t, err)
	assert.Equal(t, "react", cfg.Agent.Kind)
	assert.Equal(t, 20, cfg.Agent.MaxTurns)
	assert.Equal(t, 4, cfg.Judge.Concurrency)
	assert.Equal(t, 3, cfg.Judge.ParseAttempts)
	assert.Equal(t, CacheMemory, cfg.Judge.Cache.Kind)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, "results/runs", cfg.Output)
}

func TestLoadFull(t *testing.T) {
	t.Setenv("AGENT_MODEL", "")
	t.Setenv("JUDGE_MODEL", "")
	t.Setenv("REDIS_URL", "")
	cfg, err := Load("../../testdata/full.yaml")
	require.NoError(t, err)
	assert.Equal(t, "plan-act", cfg.Agent.Kind)
	assert.Equal(t, "bedrock:anthropic.claude-3-5-haiku-20241022-v1:0", cfg.Agent.Model)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.Judge.Model)
	assert.Equal(t, 2*time.Second, cfg.Judge.ParseBackoff)
	assert.Equal(t, CacheRedis, cfg.Judge.Cache.Kind)
	assert.Equal(t, 24*time.Hour, cfg.Judge.Cache.TTL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "testdata/worlds/office.yaml", cfg.World)
	assert.Equal(t, 3, cfg.Parallel)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("../../testdata/invalid.yaml")
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown agent", Config{Agent: Agent{Kind: "swarm"}}},
		{"negative turns", Config{Agent: Agent{MaxTurns: -1}}},
		{"hot temperature", Config{Agent: Agent{Temperature: 3}}},
		{"zero-ish concurrency", Config{Judge: Judge{Concurrency: -2}}},
		{"unknown cache", Config{Judge: Judge{Cache: Cache{Kind: "memcached"}}}},
		{"redis without url", Config{Judge: Judge{Cache: Cache{Kind: CacheRedis}}}},
		{"negative parallel", Config{Parallel: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate(&tt.cfg))
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	env := map[string]string{
		"AGENT_MODEL":          "openai:gpt-4.1",
		"JUDGE_MODEL":          "anthropic:claude",
		"OPENAI_API_KEY":       "sk-test",
		"WORLDBENCH_LOG_LEVEL": "debug",
		"REDIS_URL":            "redis://localhost:6379/2",
	}
	cfg := Config{Agent: Agent{Model: "openai:gpt-4o"}}
	applyEnv(&cfg, func(k string) string { return env[k] })
	require.NoError(t, validate(&cfg))

	assert.Equal(t, "openai:gpt-4.1", cfg.Agent.Model)
	assert.Equal(t, "anthropic:claude", cfg.Judge.Model)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAIAPIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, CacheRedis, cfg.Judge.Cache.Kind)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Judge.Cache.RedisURL)
}

func TestEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WORLDBENCH_TEST_A=from-file\nWORLDBENCH_TEST_B=from-file\n"), 0o600))
	t.Setenv("WORLDBENCH_TEST_A", "from-env")
	t.Setenv("WORLDBENCH_TEST_B", "")
	os.Unsetenv("WORLDBENCH_TEST_B")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("WORLDBENCH_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("WORLDBENCH_TEST_B"))

	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
