package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/worldbench/internal/pricing"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestLoadPricing(t *testing.T) {
	dir := t.TempDir()
	content := `bedrock:
  claude-opus:
    input: 0.015
    output: 0.075
openai:
  gpt-test:
    input: 0.01
    output: 0.03
`
	path := filepath.Join(dir, "pricing.yaml")
	os.WriteFile(path, []byte(content), 0o644)

	table, err := pricing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cost := table.Cost("bedrock", "claude-opus", 1000, 500)
	want := 0.0525
	if abs(cost-want) > 0.001 {
		t.Errorf("got %f, want %f", cost, want)
	}
	if got := table.ModelCost("anthropic:claude-opus", 1000, 500); abs(got-want) > 0.001 {
		t.Errorf("anthropic alias: got %f, want %f", got, want)
	}
	if got := table.ModelCost("gpt-test", 2000, 0); abs(got-0.02) > 0.0001 {
		t.Errorf("unprefixed model: got %f, want 0.02", got)
	}
}

func TestCostUnknownModel(t *testing.T) {
	table := &pricing.Table{}
	cost := table.Cost("unknown", "unknown", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestDefaultTable(t *testing.T) {
	table := pricing.Default()
	if table.ModelCost("openai:gpt-4o-mini", 1000, 1000) <= 0 {
		t.Error("expected a price for gpt-4o-mini")
	}
}
