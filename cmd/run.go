package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/agent"
	"github.com/signalnine/worldbench/internal/config"
	"github.com/signalnine/worldbench/internal/launcher"
	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/logging"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/runner"
	"github.com/signalnine/worldbench/internal/world"
	"github.com/signalnine/worldbench/internal/world/apps"
)

var (
	flagAgent        string
	flagModel        string
	flagTasks        string
	flagWorld        string
	flagOutput       string
	flagSystemPrompt string
	flagParallel     int
	flagIsolation    string
	flagEvaluate     bool
	flagRunID        string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an agent over a task set",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagAgent, "agent", "", fmt.Sprintf("agent kind %v", agent.Kinds()))
	cmd.Flags().StringVar(&flagModel, "model", "", "agent model id, e.g. openai:gpt-4o-mini (overrides AGENT_MODEL)")
	cmd.Flags().StringVar(&flagTasks, "tasks", "", "directory of task files")
	cmd.Flags().StringVar(&flagWorld, "world", "", "world spec file; omit to run without tools")
	cmd.Flags().StringVar(&flagOutput, "output", "", "output directory for runs")
	cmd.Flags().StringVar(&flagSystemPrompt, "system-prompt", "", "system prompt, or @file to read it from a file")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent tasks")
	cmd.Flags().StringVar(&flagIsolation, "isolation", "", "world isolation (per-task, shared)")
	cmd.Flags().BoolVar(&flagEvaluate, "evaluate", false, "evaluate the run when it finishes")
	cmd.Flags().StringVar(&flagRunID, "run-id", "", "run id (default: random uuid)")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	logger := newLogger(cfg)

	kind, err := agent.ParseKind(cfg.Agent.Kind)
	if err != nil {
		return err
	}
	systemPrompt, err := readPrompt(cfg.Agent.SystemPrompt)
	if err != nil {
		return err
	}
	spec, err := loadWorld(cfg.World, flagIsolation)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(ctx, cfg.Agent.Model, llmOptions(cfg, cfg.Agent.MaxTokens, logging.Component(logger, "llm")))
	if err != nil {
		return fmt.Errorf("agent model: %w", err)
	}
	a, err := agent.New(kind, agent.Deps{
		Client:      client,
		MaxTurns:    cfg.Agent.MaxTurns,
		MaxTokens:   cfg.Agent.MaxTokens,
		Temperature: cfg.Agent.Temperature,
		Logger:      logging.Component(logger, "agent"),
	})
	if err != nil {
		return err
	}

	rcfg := &runner.Config{
		RunID:        flagRunID,
		OutputDir:    cfg.Output,
		TasksDir:     cfg.Tasks,
		Agent:        a,
		AgentKind:    string(kind),
		AgentModel:   cfg.Agent.Model,
		SystemPrompt: systemPrompt,
		World:        spec,
		Parallel:     cfg.Parallel,
		Logger:       logging.Component(logger, "runner"),
	}
	if spec != nil {
		rcfg.Acquire = runner.LauncherAcquire(launcher.Options{
			LogDir: filepath.Join(cfg.Output, "world-logs"),
			Logger: logging.Component(logger, "launcher"),
		})
	}

	summary, runErr := runner.Run(ctx, rcfg)
	if summary != nil {
		m := summary.Manifest
		fmt.Printf("Run %s: %d tasks, %d completed, %d failed, %d skipped\n",
			summary.RunID, m.NumTasks, m.Counts[result.StatusCompleted], m.Counts[result.StatusFailed], len(m.Skipped))
		fmt.Printf("Results: %s\n", summary.RunDir)
	}
	if runErr != nil {
		return runErr
	}
	if !flagEvaluate {
		return nil
	}
	fmt.Println("\n--- Evaluation ---")
	return evaluateRun(ctx, cfg, logger, summary.RunDir, os.Stdout)
}

// applyRunFlags lets command-line flags override the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("agent") {
		kind, err := agent.ParseKind(flagAgent)
		if err != nil {
			return err
		}
		cfg.Agent.Kind = string(kind)
	}
	if f.Changed("model") {
		cfg.Agent.Model = flagModel
	}
	if f.Changed("tasks") {
		cfg.Tasks = flagTasks
	}
	if f.Changed("world") {
		cfg.World = flagWorld
	}
	if f.Changed("output") {
		cfg.Output = flagOutput
	}
	if f.Changed("system-prompt") {
		cfg.Agent.SystemPrompt = flagSystemPrompt
	}
	if f.Changed("parallel") {
		if flagParallel < 1 {
			return fmt.Errorf("--parallel must be at least 1")
		}
		cfg.Parallel = flagParallel
	}
	if cfg.Agent.Model == "" {
		return fmt.Errorf("no agent model: set --model, agent.model or AGENT_MODEL")
	}
	return nil
}

// loadWorld reads and checks the world spec, including that its apps and seed
// data compose, so a bad world fails before any task runs.
func loadWorld(path, isolation string) (*world.Spec, error) {
	if path == "" {
		if isolation != "" {
			return nil, fmt.Errorf("--isolation needs a world")
		}
		return nil, nil
	}
	spec, err := world.LoadSpec(path)
	if err != nil {
		return nil, err
	}
	if isolation != "" {
		spec.Isolation = isolation
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}
	if _, err := apps.Compose(spec, nil); err != nil {
		return nil, fmt.Errorf("world %s: %w", spec.Name, err)
	}
	return spec, nil
}

func readPrompt(p string) (string, error) {
	if len(p) > 1 && p[0] == '@' {
		data, err := os.ReadFile(p[1:])
		if err != nil {
			return "", fmt.Errorf("reading system prompt: %w", err)
		}
		return string(data), nil
	}
	return p, nil
}

func llmOptions(cfg *config.Config, maxTokens int, logger zerolog.Logger) llm.Options {
	return llm.Options{
		OpenAIAPIKey:  cfg.Providers.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Providers.OpenAIBaseURL,
		AWSRegion:     cfg.Providers.AWSRegion,
		MaxTokens:     maxTokens,
		Retry:         cfg.Retry,
		Logger:        logger,
	}
}
