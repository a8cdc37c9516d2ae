// Package runner drives an agent over a task set, one world per task or one
// per run, persisting each result as soon as it exists.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalnine/worldbench/internal/agent"
	"github.com/signalnine/worldbench/internal/launcher"
	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
)

// World is an acquired world; *launcher.World satisfies it.
type World interface {
	Transport() *world.Transport
	Release() error
}

// AcquireFunc brings up a world for a worker slot.
type AcquireFunc func(ctx context.Context, spec *world.Spec, slot int) (World, error)

// LauncherAcquire acquires worlds with the launcher, offsetting the port by
// the worker slot.
func LauncherAcquire(opts launcher.Options) AcquireFunc {
	return func(ctx context.Context, spec *world.Spec, slot int) (World, error) {
		o := opts
		o.Port = spec.Port + slot
		return launcher.Acquire(ctx, spec, o)
	}
}

type Config struct {
	RunID        string
	OutputDir    string
	TasksDir     string
	Agent        agent.Agent
	AgentKind    string
	AgentModel   string
	SystemPrompt string
	// World is nil for runs without tools.
	World    *world.Spec
	Parallel int
	Acquire  AcquireFunc
	Logger   zerolog.Logger
	Now      func() time.Time
}

type Summary struct {
	RunID    string
	RunDir   string
	Manifest *result.Manifest
}

type run struct {
	cfg    *Config
	runDir string
	states map[string]*taskState
	shared *world.Transport
	now    func() time.Time
	log    zerolog.Logger
}

// Run executes every task under cfg.TasksDir. Task load failures are skipped
// with a warning; agent failures are recorded and the run continues. A world
// that cannot start, or a result that cannot be persisted, ends the run.
func Run(ctx context.Context, cfg *Config) (*Summary, error) {
	if cfg.Agent == nil {
		return nil, &agent.ConfigurationError{Msg: "no agent configured"}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.World != nil && cfg.Acquire == nil {
		cfg.Acquire = LauncherAcquire(launcher.Options{Logger: cfg.Logger})
	}
	parallel := cfg.Parallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel > 1 && cfg.World != nil && cfg.World.Isolation == world.IsolationShared {
		cfg.Logger.Warn().Int("parallel", parallel).Msg("shared world isolation runs tasks sequentially")
		parallel = 1
	}

	tasks, loadErrs, err := task.LoadDir(cfg.TasksDir)
	if err != nil {
		return nil, err
	}
	skipped := map[string]string{}
	for _, le := range loadErrs {
		cfg.Logger.Warn().Err(le).Msg("skipping task")
		var loadErr *task.LoadError
		if errors.As(le, &loadErr) {
			skipped[loadErr.Path] = loadErr.Err.Error()
		} else {
			skipped[le.Error()] = le.Error()
		}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks loaded from %s", cfg.TasksDir)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = result.NewRunID()
	}
	runDir, err := result.CreateRunDir(cfg.OutputDir, runID)
	if err != nil {
		return nil, err
	}

	manifest := &result.Manifest{
		RunID:        runID,
		Agent:        cfg.AgentKind,
		AgentModel:   cfg.AgentModel,
		TasksDir:     cfg.TasksDir,
		SystemPrompt: cfg.SystemPrompt,
		Status:       result.StatusRunning,
		StartedAt:    now().UTC(),
		NumTasks:     len(tasks),
		Skipped:      skipped,
	}
	if cfg.World != nil {
		manifest.World = cfg.World.Name
		manifest.Isolation = cfg.World.Isolation
	}
	r := &run{cfg: cfg, runDir: runDir, states: map[string]*taskState{}, now: now}
	for _, t := range tasks {
		manifest.TaskIDs = append(manifest.TaskIDs, t.ID)
		r.states[t.ID] = newTaskState()
	}
	if err := result.WriteManifest(runDir, manifest); err != nil {
		return nil, err
	}
	log := cfg.Logger.With().Str("run_id", runID).Logger()
	r.log = log
	log.Info().Int("tasks", len(tasks)).Int("parallel", parallel).Str("dir", runDir).Msg("run started")

	runErr := r.execute(ctx, tasks, parallel)
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	manifest.FinishedAt = now().UTC()
	manifest.Counts = map[result.Status]int{}
	for _, s := range r.states {
		manifest.Counts[s.get()]++
	}
	manifest.Status = result.StatusCompleted
	if runErr != nil {
		manifest.Status = result.StatusFailed
	}
	if err := result.WriteManifest(runDir, manifest); err != nil && runErr == nil {
		runErr = err
	}
	log.Info().
		Int("completed", manifest.Counts[result.StatusCompleted]).
		Int("failed", manifest.Counts[result.StatusFailed]).
		Int("pending", manifest.Counts[result.StatusPending]).
		Msg("run finished")

	return &Summary{RunID: runID, RunDir: runDir, Manifest: manifest}, runErr
}

func (r *run) execute(ctx context.Context, tasks []*task.Task, parallel int) error {
	if r.cfg.World != nil && !r.perTask() {
		w, err := r.cfg.Acquire(ctx, r.cfg.World, 0)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Release(); err != nil {
				r.log.Error().Err(err).Msg("releasing shared world")
			}
		}()
		r.shared = w.Transport()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := make([]Job, len(tasks))
	for i, t := range tasks {
		jobs[i] = func(ctx context.Context, slot int) error {
			if err := r.runTask(ctx, t, slot); err != nil {
				cancel()
				return err
			}
			return nil
		}
	}
	errs := RunPool(ctx, parallel, jobs)
	return firstFatal(errs)
}

// firstFatal prefers a real failure over the cancellation it caused.
func firstFatal(errs []error) error {
	var fallback error
	for _, err := range errs {
		if errors.Is(err, context.Canceled) {
			if fallback == nil {
				fallback = err
			}
			continue
		}
		return err
	}
	return fallback
}
