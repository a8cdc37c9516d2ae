package runner

import (
	"fmt"
	"sync"

	"github.com/signalnine/worldbench/internal/result"
)

// taskState tracks one task through pending → running → completed|failed.
type taskState struct {
	mu     sync.Mutex
	status result.Status
}

func newTaskState() *taskState {
	return &taskState{status: result.StatusPending}
}

func (s *taskState) transition(to result.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := false
	switch s.status {
	case result.StatusPending:
		ok = to == result.StatusRunning
	case result.StatusRunning:
		ok = to == result.StatusCompleted || to == result.StatusFailed
	}
	if !ok {
		return fmt.Errorf("invalid task transition %s -> %s", s.status, to)
	}
	s.status = to
	return nil
}

func (s *taskState) get() result.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
