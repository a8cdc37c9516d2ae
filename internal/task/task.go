package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Criterion is one rubric assertion about the final response.
type Criterion struct {
	Criteria string `json:"criteria" yaml:"criteria"`
}

// Rubric entries may be written as plain strings or {criteria: ...} objects.
func (c *Criterion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Criteria = s
		return nil
	}
	type plain Criterion
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Criterion(p)
	return nil
}

func (c *Criterion) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Criteria = node.Value
		return nil
	}
	type plain Criterion
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Criterion(p)
	return nil
}

type Task struct {
	ID           string      `json:"task_id" yaml:"id"`
	Domain       string      `json:"domain" yaml:"domain"`
	Prompt       string      `json:"prompt" yaml:"prompt"`
	GoldResponse string      `json:"gold_response" yaml:"gold_response"`
	Rubric       []Criterion `json:"rubric" yaml:"rubric"`
}

// file is the on-disk shape; both "id" and "task_id" are accepted.
type file struct {
	ID           string      `json:"id" yaml:"id"`
	TaskID       string      `json:"task_id" yaml:"task_id"`
	Domain       string      `json:"domain" yaml:"domain"`
	Prompt       string      `json:"prompt" yaml:"prompt"`
	GoldResponse string      `json:"gold_response" yaml:"gold_response"`
	Rubric       []Criterion `json:"rubric" yaml:"rubric"`
}

// LoadError reports a task artifact that could not be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading task %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Result files are named <id>.json next to the run's own artifacts, so these
// ids would collide with them.
var reservedIDs = map[string]bool{"manifest": true, "grades": true, "final": true}

const reservedSuffix = ".eval"

// Load reads one task file. A missing id is derived from the file name.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	t := &Task{
		ID:           f.ID,
		Domain:       strings.TrimSpace(f.Domain),
		Prompt:       f.Prompt,
		GoldResponse: f.GoldResponse,
		Rubric:       f.Rubric,
	}
	if t.ID == "" {
		t.ID = f.TaskID
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := t.Validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return t, nil
}

func (t *Task) Validate() error {
	if !validID.MatchString(t.ID) {
		return fmt.Errorf("invalid id %q", t.ID)
	}
	if lower := strings.ToLower(t.ID); reservedIDs[lower] || strings.HasSuffix(lower, reservedSuffix) {
		return fmt.Errorf("id %q is reserved for run artifacts", t.ID)
	}
	if t.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if strings.TrimSpace(t.GoldResponse) == "" {
		return fmt.Errorf("gold_response is required")
	}
	if len(t.Rubric) == 0 {
		return fmt.Errorf("rubric must have at least one criterion")
	}
	for i, c := range t.Rubric {
		if strings.TrimSpace(c.Criteria) == "" {
			return fmt.Errorf("rubric criterion %d is empty", i)
		}
	}
	return nil
}

// LoadDir loads every *.json, *.yaml and *.yml file in dir, sorted by name.
// Files that fail to load are returned as LoadErrors alongside the good tasks.
func LoadDir(dir string) ([]*Task, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading tasks dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		tasks []*Task
		errs  []error
		seen  = map[string]string{}
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		t, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[t.ID]; dup {
			errs = append(errs, &LoadError{Path: path, Err: fmt.Errorf("duplicate id %q (first defined in %s)", t.ID, prev)})
			continue
		}
		seen[t.ID] = name
		tasks = append(tasks, t)
	}
	return tasks, errs, nil
}
