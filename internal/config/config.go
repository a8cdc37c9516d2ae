package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/worldbench/internal/agent"
	"github.com/signalnine/worldbench/internal/llm"
)

type Config struct {
	Agent     Agent           `yaml:"agent"`
	Judge     Judge           `yaml:"judge"`
	Providers Providers       `yaml:"providers"`
	Retry     llm.RetryConfig `yaml:"retry"`
	Secrets   Secrets         `yaml:"secrets"`
	// World is the path to a world spec; empty runs tasks without tools.
	World    string `yaml:"world"`
	Tasks    string `yaml:"tasks"`
	Output   string `yaml:"output"`
	Parallel int    `yaml:"parallel"`
	Pricing  string `yaml:"pricing"`
	LogLevel string `yaml:"log_level"`
}

type Agent struct {
	Kind         string  `yaml:"kind"`
	Model        string  `yaml:"model"`
	MaxTurns     int     `yaml:"max_turns"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

type Judge struct {
	Model         string        `yaml:"model"`
	Concurrency   int           `yaml:"concurrency"`
	ParseAttempts int           `yaml:"parse_attempts"`
	ParseBackoff  time.Duration `yaml:"parse_backoff"`
	Cache         Cache         `yaml:"cache"`
}

type Cache struct {
	// Kind is "memory", "redis" or "none".
	Kind     string        `yaml:"kind"`
	Size     int           `yaml:"size"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type Providers struct {
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	AWSRegion     string `yaml:"aws_region"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Load reads path, applies the environment and fills defaults. An empty path
// yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := LoadEnvFile(cfg.Secrets.EnvFile); err != nil {
		return nil, err
	}
	applyEnv(&cfg, os.Getenv)
	if err := validate(&cfg); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs without overriding variables that are
// already set. A missing default .env is not an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Agent.Model, "AGENT_MODEL")
	set(&cfg.Judge.Model, "JUDGE_MODEL")
	set(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	set(&cfg.Providers.OpenAIBaseURL, "OPENAI_BASE_URL")
	set(&cfg.Providers.AWSRegion, "AWS_REGION")
	set(&cfg.LogLevel, "WORLDBENCH_LOG_LEVEL")
	if v := strings.TrimSpace(getenv("REDIS_URL")); v != "" {
		cfg.Judge.Cache.RedisURL = v
		if cfg.Judge.Cache.Kind == "" {
			cfg.Judge.Cache.Kind = CacheRedis
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Agent.Kind == "" {
		cfg.Agent.Kind = string(agent.KindReact)
	}
	kind, err := agent.ParseKind(cfg.Agent.Kind)
	if err != nil {
		return err
	}
	cfg.Agent.Kind = string(kind)
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = agent.DefaultMaxTurns
	}
	if cfg.Agent.MaxTurns < 1 {
		return fmt.Errorf("agent.max_turns must be at least 1")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		return fmt.Errorf("agent.temperature %.2f out of range", cfg.Agent.Temperature)
	}

	if cfg.Judge.Concurrency == 0 {
		cfg.Judge.Concurrency = 4
	}
	if cfg.Judge.Concurrency < 1 {
		return fmt.Errorf("judge.concurrency must be at least 1")
	}
	if cfg.Judge.ParseAttempts == 0 {
		cfg.Judge.ParseAttempts = 3
	}
	if cfg.Judge.ParseAttempts < 1 {
		return fmt.Errorf("judge.parse_attempts must be at least 1")
	}
	if cfg.Judge.ParseBackoff == 0 {
		cfg.Judge.ParseBackoff = time.Second
	}
	c := &cfg.Judge.Cache
	if c.Kind == "" {
		c.Kind = CacheMemory
	}
	switch c.Kind {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("judge.cache.redis_url (or REDIS_URL) is required for the redis cache")
		}
		if c.TTL == 0 {
			c.TTL = 7 * 24 * time.Hour
		}
	default:
		return fmt.Errorf("unknown judge cache %q", c.Kind)
	}

	if cfg.Tasks == "" {
		cfg.Tasks = "tasks"
	}
	if cfg.Output == "" {
		cfg.Output = "results/runs"
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 1
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1")
	}
	return nil
}
