package world

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type TransportKind string

const (
	TransportHTTP  TransportKind = "http"
	TransportStdio TransportKind = "stdio"
)

// Transport tells an agent how to reach a running world.
type Transport struct {
	Kind    TransportKind `json:"kind"`
	URL     string        `json:"url,omitempty"`
	Command []string      `json:"command,omitempty"`
	Env     []string      `json:"env,omitempty"`
}

func (t *Transport) String() string {
	if t == nil {
		return "none"
	}
	if t.Kind == TransportStdio {
		return fmt.Sprintf("stdio:%v", t.Command)
	}
	return string(t.Kind) + ":" + t.URL
}

const (
	RuntimeProcess = "process"
	RuntimeDocker  = "docker"
	RuntimeStdio   = "stdio"

	IsolationPerTask = "per-task"
	IsolationShared  = "shared"

	DefaultPort = 8765
)

// Spec is the on-disk description of a world.
type Spec struct {
	Name          string        `yaml:"name" json:"name"`
	Apps          []string      `yaml:"apps" json:"apps"`
	Seed          string        `yaml:"seed" json:"seed,omitempty"`
	Runtime       string        `yaml:"runtime" json:"runtime"`
	Port          int           `yaml:"port" json:"port"`
	Image         string        `yaml:"image" json:"image,omitempty"`
	Isolation     string        `yaml:"isolation" json:"isolation"`
	ReadyAttempts int           `yaml:"ready_attempts" json:"-"`
	ReadyInterval time.Duration `yaml:"ready_interval" json:"-"`
	StopGrace     time.Duration `yaml:"stop_grace" json:"-"`

	Path string `yaml:"-" json:"path,omitempty"`
}

func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world spec %s: %w", path, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing world spec %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving world spec path: %w", err)
	}
	spec.Path = abs
	if spec.Seed != "" && !filepath.IsAbs(spec.Seed) {
		spec.Seed = filepath.Join(filepath.Dir(abs), spec.Seed)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world spec %s: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the spec and fills defaults.
func (s *Spec) Validate() error {
	if len(s.Apps) == 0 {
		return &ConfigurationError{Msg: "world has no apps"}
	}
	if s.Name == "" {
		s.Name = "world"
	}
	switch s.Runtime {
	case "":
		s.Runtime = RuntimeProcess
	case RuntimeProcess, RuntimeStdio:
	case RuntimeDocker:
		if s.Image == "" {
			return &ConfigurationError{Msg: "docker runtime requires an image"}
		}
	default:
		return &ConfigurationError{Msg: fmt.Sprintf("unknown runtime %q", s.Runtime)}
	}
	switch s.Isolation {
	case "":
		s.Isolation = IsolationPerTask
	case IsolationPerTask, IsolationShared:
	default:
		return &ConfigurationError{Msg: fmt.Sprintf("unknown isolation mode %q", s.Isolation)}
	}
	// Every stdio session spawns its own world, so state cannot be shared.
	if s.Runtime == RuntimeStdio && s.Isolation == IsolationShared {
		return &ConfigurationError{Msg: "stdio runtime starts a world per session and cannot be shared; use the process or docker runtime"}
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Port < 1 || s.Port > 65535 {
		return &ConfigurationError{Msg: fmt.Sprintf("port %d out of range", s.Port)}
	}
	if s.ReadyAttempts <= 0 {
		s.ReadyAttempts = 60
	}
	if s.ReadyInterval <= 0 {
		s.ReadyInterval = 250 * time.Millisecond
	}
	if s.StopGrace <= 0 {
		s.StopGrace = 5 * time.Second
	}
	return nil
}

var timeTag = regexp.MustCompile(`\{\{\s*NOW\s*(?:([+-])\s*(\d+)\s*([dhm]))?\s*\}\}`)

// ExpandTimeTags replaces {{NOW}}, {{NOW+1d}}, {{NOW-2h}} and {{NOW+30m}}
// with RFC 3339 timestamps relative to now.
func ExpandTimeTags(s string, now time.Time) string {
	return timeTag.ReplaceAllStringFunc(s, func(tag string) string {
		m := timeTag.FindStringSubmatch(tag)
		t := now
		if m[1] != "" {
			n, _ := strconv.Atoi(m[2])
			var unit time.Duration
			switch m[3] {
			case "d":
				unit = 24 * time.Hour
			case "h":
				unit = time.Hour
			case "m":
				unit = time.Minute
			}
			offset := time.Duration(n) * unit
			if m[1] == "-" {
				offset = -offset
			}
			t = now.Add(offset)
		}
		return t.UTC().Format(time.RFC3339)
	})
}
