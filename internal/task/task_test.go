package task_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/worldbench/internal/task"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "spam.json", `{
  "id": "email-spam",
  "domain": "email",
  "prompt": "Delete all spam emails.",
  "gold_response": "Deleted 1 spam email.",
  "rubric": [{"criteria": "reports the count"}, "mentions e004"]
}`)
	got, err := task.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "email-spam" {
		t.Errorf("id: got %q", got.ID)
	}
	if len(got.Rubric) != 2 || got.Rubric[1].Criteria != "mentions e004" {
		t.Errorf("rubric: got %+v", got.Rubric)
	}
}

func TestLoadYAMLDerivesID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "calendar-move.yaml", `
domain: calendar
prompt: Move the standup.
gold_response: Moved.
rubric:
  - criteria: confirms the move
  - names the new time
`)
	got, err := task.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "calendar-move" {
		t.Errorf("id: got %q, want %q", got.ID, "calendar-move")
	}
	if got.Rubric[1].Criteria != "names the new time" {
		t.Errorf("rubric: got %+v", got.Rubric)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"bad.json", `{not json`},
		{"nodomain.json", `{"prompt":"p","gold_response":"g","rubric":["c"]}`},
		{"norubric.json", `{"domain":"d","prompt":"p","gold_response":"g","rubric":[]}`},
		{"emptycrit.json", `{"domain":"d","prompt":"p","gold_response":"g","rubric":[" "]}`},
		{"badid.json", `{"id":"../x","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`},
		{"manifest.json", `{"domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`},
		{"grades.yaml", "domain: d\nprompt: p\ngold_response: g\nrubric: [c]\n"},
		{"final-id.json", `{"id":"Final","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`},
		{"eval-id.json", `{"id":"x.eval","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := task.Load(writeFile(t, dir, tt.name, tt.content))
			var loadErr *task.LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected LoadError, got %v", err)
			}
		})
	}
}

func TestLoadDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"id":"b","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`)
	writeFile(t, dir, "a.json", `{"id":"a","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`)
	writeFile(t, dir, "c.json", `{broken`)
	writeFile(t, dir, "d.json", `{"id":"a","domain":"d","prompt":"p","gold_response":"g","rubric":["c"]}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	tasks, errs, err := task.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "a" || tasks[1].ID != "b" {
		t.Errorf("tasks: got %d", len(tasks))
	}
	if len(errs) != 2 {
		t.Errorf("errors: got %d, want 2 (%v)", len(errs), errs)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, _, err := task.LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing dir")
	}
}
