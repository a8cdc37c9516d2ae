package runner

import (
	"testing"

	"github.com/signalnine/worldbench/internal/result"
)

func TestTaskStateTransitions(t *testing.T) {
	s := newTaskState()
	if err := s.transition(result.StatusCompleted); err == nil {
		t.Error("pending -> completed should be rejected")
	}
	if err := s.transition(result.StatusRunning); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	if err := s.transition(result.StatusFailed); err != nil {
		t.Fatalf("running -> failed: %v", err)
	}
	for _, to := range []result.Status{result.StatusRunning, result.StatusCompleted, result.StatusPending} {
		if err := s.transition(to); err == nil {
			t.Errorf("failed -> %s should be rejected", to)
		}
	}
	if got := s.get(); got != result.StatusFailed {
		t.Errorf("got %s, want failed", got)
	}
}
