package launcher

import (
	"context"
	"testing"
)

// Scans the process table after Release: nothing from the world's process
// group may survive, including processes the world spawned itself.
func TestReleaseLeavesNoProcesses(t *testing.T) {
	spec := testSpec(t)
	w, err := Acquire(context.Background(), spec, helperOpts(t, "serve"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pgid := w.Pid()
	if n := len(groupMembers(pgid)); n < 2 {
		t.Fatalf("expected world and its child in group %d, found %d", pgid, n)
	}

	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if pids := groupMembers(pgid); len(pids) > 0 {
		t.Errorf("processes survived teardown: %v", pids)
	}
}
