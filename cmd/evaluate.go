package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/config"
	"github.com/signalnine/worldbench/internal/evaluator"
	"github.com/signalnine/worldbench/internal/judge"
	"github.com/signalnine/worldbench/internal/llm"
	"github.com/signalnine/worldbench/internal/logging"
	"github.com/signalnine/worldbench/internal/pricing"
	"github.com/signalnine/worldbench/internal/report"
	"github.com/signalnine/worldbench/internal/result"
)

var flagJudgeModel string

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [run-id|run-dir]",
		Short: "Grade a finished run against its rubrics",
		Long:  "Ask the judge model for a verdict on every rubric criterion of every completed task, then write per-task grades, grades.json and final.json. Re-running replaces earlier grades.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("judge-model") {
				cfg.Judge.Model = flagJudgeModel
			}
			logger := newLogger(cfg)
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			runDir, err := result.ResolveRunDir(cfg.Output, ref)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return evaluateRun(ctx, cfg, logger, runDir, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagJudgeModel, "judge-model", "", "judge model id (overrides JUDGE_MODEL)")
	return cmd
}

func evaluateRun(ctx context.Context, cfg *config.Config, logger zerolog.Logger, runDir string, w io.Writer) error {
	if cfg.Judge.Model == "" {
		return fmt.Errorf("no judge model: set --judge-model, judge.model or JUDGE_MODEL")
	}
	client, err := llm.New(ctx, cfg.Judge.Model, llmOptions(cfg, 0, logging.Component(logger, "llm")))
	if err != nil {
		return fmt.Errorf("judge model: %w", err)
	}
	cache, closeCache, err := newVerdictCache(ctx, cfg.Judge.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	table := pricing.Default()
	if cfg.Pricing != "" {
		if table, err = pricing.Load(cfg.Pricing); err != nil {
			return err
		}
	}

	j := judge.New(client, judge.Options{
		Model:         cfg.Judge.Model,
		ParseAttempts: cfg.Judge.ParseAttempts,
		ParseBackoff:  cfg.Judge.ParseBackoff,
		Cache:         cache,
		Logger:        logging.Component(logger, "judge"),
	})
	final, err := evaluator.Evaluate(ctx, runDir, evaluator.Options{
		Judge:       j,
		Concurrency: cfg.Judge.Concurrency,
		Pricing:     table,
		Logger:      logging.Component(logger, "evaluator"),
	})
	if err != nil {
		return err
	}
	if final.JudgeParseErrors > 0 {
		fmt.Fprintf(w, "warning: %d criteria had no readable judge verdict and were marked failed\n", final.JudgeParseErrors)
	}
	return report.Generate([]string{runDir}, "table", w)
}

func newVerdictCache(ctx context.Context, c config.Cache) (judge.Cache, func(), error) {
	switch c.Kind {
	case config.CacheRedis:
		rc, err := judge.NewRedisCache(ctx, c.RedisURL, c.TTL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	case config.CacheNone:
		return nil, func() {}, nil
	default:
		mc, err := judge.NewMemoryCache(c.Size)
		if err != nil {
			return nil, nil, err
		}
		return mc, func() {}, nil
	}
}
