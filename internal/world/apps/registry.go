package apps

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/worldbench/internal/world"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial state for every app, keyed by app name.
type Seed struct {
	Email    []Email `yaml:"email"`
	Calendar []Event `yaml:"calendar"`
	Todo     []Todo  `yaml:"todo"`
}

// ParseSeed expands {{NOW...}} time tags relative to now and decodes the result.
func ParseSeed(data []byte, now time.Time) (*Seed, error) {
	expanded := world.ExpandTimeTags(string(data), now)
	var seed Seed
	if err := yaml.Unmarshal([]byte(expanded), &seed); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}
	return &seed, nil
}

func LoadSeed(path string, now time.Time) (*Seed, error) {
	if path == "" {
		return ParseSeed(defaultSeed, now)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", path, err)
	}
	return ParseSeed(data, now)
}

type factory func(seed *Seed, now func() time.Time) world.App

var registry = map[string]factory{
	"email":      func(s *Seed, now func() time.Time) world.App { return NewEmailApp(s.Email, now) },
	"calendar":   func(s *Seed, now func() time.Time) world.App { return NewCalendarApp(s.Calendar) },
	"todo":       func(s *Seed, now func() time.Time) world.App { return NewTodoApp(s.Todo, now) },
	"calculator": func(s *Seed, now func() time.Time) world.App { return NewCalculatorApp() },
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named apps in order. Unknown names are a
// ConfigurationError; duplicates are left for world.Mount to reject.
func Build(names []string, seed *Seed, now func() time.Time) ([]world.App, error) {
	var out []world.App
	for _, name := range names {
		f, ok := registry[name]
		if !ok {
			return nil, &world.ConfigurationError{Msg: fmt.Sprintf("unknown app %q (available: %v)", name, Names())}
		}
		out = append(out, f(seed, now))
	}
	return out, nil
}

// Compose loads seed data for spec, builds its apps and mounts them.
func Compose(spec *world.Spec, now func() time.Time) (*world.RoutingTable, error) {
	if now == nil {
		now = time.Now
	}
	seed, err := LoadSeed(spec.Seed, now())
	if err != nil {
		return nil, err
	}
	built, err := Build(spec.Apps, seed, now)
	if err != nil {
		return nil, err
	}
	return world.Mount(built...)
}
