package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/signalnine/worldbench/internal/logging"
)

func TestNewJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, "warn", false)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["message"] != "shown" {
		t.Errorf("message: got %v, want shown", rec["message"])
	}
}

func TestNewBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, "loud", false)
	l.Debug().Msg("debug")
	l.Info().Msg("info")
	if bytes.Contains(buf.Bytes(), []byte("debug")) {
		t.Errorf("debug line should be filtered: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("info")) {
		t.Errorf("info line missing: %s", buf.String())
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := logging.Component(logging.New(&buf, "info", false), "launcher")
	l.Info().Msg("x")
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"launcher"`)) {
		t.Errorf("component field missing: %s", buf.String())
	}
}
