package world_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/worldbench/internal/world"
)

func TestExpandTimeTags(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want string
	}{
		{"{{NOW}}", "2026-03-10T12:00:00Z"},
		{"{{NOW+1d}}", "2026-03-11T12:00:00Z"},
		{"{{NOW-2h}}", "2026-03-10T10:00:00Z"},
		{"at {{ NOW + 30m }}!", "at 2026-03-10T12:30:00Z!"},
		{"no tags", "no tags"},
	}
	for _, tt := range tests {
		if got := world.ExpandTimeTags(tt.in, now); got != tt.want {
			t.Errorf("ExpandTimeTags(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadSpecDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.yaml")
	os.WriteFile(path, []byte("name: office\napps: [email, calendar]\nseed: seed.yaml\n"), 0o644)

	spec, err := world.LoadSpec(path)
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if spec.Runtime != world.RuntimeProcess {
		t.Errorf("runtime: got %q", spec.Runtime)
	}
	if spec.Isolation != world.IsolationPerTask {
		t.Errorf("isolation: got %q", spec.Isolation)
	}
	if spec.Port != world.DefaultPort {
		t.Errorf("port: got %d", spec.Port)
	}
	if spec.Seed != filepath.Join(dir, "seed.yaml") {
		t.Errorf("seed: got %q", spec.Seed)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec world.Spec
	}{
		{"no apps", world.Spec{}},
		{"docker without image", world.Spec{Apps: []string{"email"}, Runtime: "docker"}},
		{"bad runtime", world.Spec{Apps: []string{"email"}, Runtime: "vm"}},
		{"bad isolation", world.Spec{Apps: []string{"email"}, Isolation: "sometimes"}},
		{"bad port", world.Spec{Apps: []string{"email"}, Port: 70000}},
		{"shared stdio", world.Spec{Apps: []string{"email"}, Runtime: "stdio", Isolation: "shared"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			var cfgErr *world.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}
