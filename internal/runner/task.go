package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalnine/worldbench/internal/result"
	"github.com/signalnine/worldbench/internal/task"
	"github.com/signalnine/worldbench/internal/world"
)

// runTask executes one task and persists its result before returning. Only
// run-fatal conditions are returned as errors; agent failures are recorded.
func (r *run) runTask(ctx context.Context, t *task.Task, slot int) error {
	state := r.states[t.ID]
	if err := state.transition(result.StatusRunning); err != nil {
		return err
	}
	log := r.log.With().Str("task", t.ID).Int("slot", slot).Logger()
	log.Info().Str("domain", t.Domain).Msg("task started")

	started := r.now()
	transport := r.shared
	if r.perTask() {
		w, err := r.cfg.Acquire(ctx, r.cfg.World, slot)
		if err != nil {
			if terr := state.transition(result.StatusFailed); terr != nil {
				log.Error().Err(terr).Msg("marking task failed")
			}
			res := &result.AgentResult{Status: result.StatusFailed, Error: err.Error(), StartedAt: started, FinishedAt: r.now()}
			if rerr := r.record(t, res); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		defer func() {
			if err := w.Release(); err != nil {
				log.Error().Err(err).Msg("releasing world")
			}
		}()
		transport = w.Transport()
	}

	res, err := r.cfg.Agent.Run(ctx, t, r.cfg.SystemPrompt, transport)
	if res == nil {
		res = &result.AgentResult{}
	}
	res.StartedAt = started
	res.FinishedAt = r.now()
	res.TimeTaken = res.FinishedAt.Sub(started).Seconds()
	res.Status = result.StatusCompleted
	if err != nil {
		res.Status = result.StatusFailed
		res.Error = err.Error()
	}
	if err := state.transition(res.Status); err != nil {
		return err
	}

	if err := r.record(t, res); err != nil {
		return err
	}
	ev := log.Info()
	if res.Status == result.StatusFailed {
		ev = log.Warn().Str("error", res.Error)
	}
	ev.Str("status", string(res.Status)).
		Int("turns", res.Turns).
		Int("tool_calls", len(res.ToolCalls)).
		Int("tokens", res.TokenUsage.TotalTokens).
		Dur("took", time.Duration(res.TimeTaken*float64(time.Second))).
		Msg("task finished")
	return nil
}

func (r *run) record(t *task.Task, res *result.AgentResult) error {
	if err := result.WriteTaskResult(r.runDir, &result.TaskResult{Task: *t, AgentResult: *res}); err != nil {
		if errors.Is(err, result.ErrExists) {
			return err
		}
		return fmt.Errorf("persisting result for %s: %w", t.ID, err)
	}
	return nil
}

func (r *run) perTask() bool {
	return r.cfg.World != nil && r.cfg.World.Isolation != world.IsolationShared
}
