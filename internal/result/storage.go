package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	ManifestFile = "manifest.json"
	GradesFile   = "grades.json"
	FinalFile    = "final.json"
	evalSuffix   = ".eval.json"
)

var ErrExists = errors.New("result already recorded")

func NewRunID() string {
	return uuid.NewString()
}

// CreateRunDir makes <baseDir>/<runID> and points <baseDir>/latest at it.
// The directory must not already exist, so a run id is never reused.
func CreateRunDir(baseDir, runID string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	runDir, err := filepath.Abs(filepath.Join(baseDir, runID))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// ResolveRunDir accepts a directory path, a run id under baseDir, or "" for
// the latest run.
func ResolveRunDir(baseDir, ref string) (string, error) {
	candidates := []string{filepath.Join(baseDir, "latest")}
	if ref != "" {
		candidates = []string{ref, filepath.Join(baseDir, ref)}
	}
	for _, c := range candidates {
		resolved, err := filepath.EvalSymlinks(c)
		if err != nil {
			continue
		}
		if fi, err := os.Stat(resolved); err == nil && fi.IsDir() {
			return resolved, nil
		}
	}
	if ref == "" {
		return "", fmt.Errorf("no runs found in %s", baseDir)
	}
	return "", fmt.Errorf("run %q not found", ref)
}

func TaskResultPath(runDir, taskID string) string {
	return filepath.Join(runDir, taskID+".json")
}

func GradePath(runDir, taskID string) string {
	return filepath.Join(runDir, taskID+evalSuffix)
}

// WriteTaskResult persists a task result. Each task is written exactly
// once per run; a second write fails with ErrExists.
func WriteTaskResult(runDir string, r *TaskResult) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	f, err := os.OpenFile(TaskResultPath(runDir, r.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("task %s: %w", r.ID, ErrExists)
		}
		return fmt.Errorf("creating result file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing result file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing result file: %w", err)
	}
	return f.Close()
}

func ReadTaskResult(path string) (*TaskResult, error) {
	var r TaskResult
	if err := readJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func isTaskResultFile(name string) bool {
	if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, evalSuffix) {
		return false
	}
	switch name {
	case ManifestFile, GradesFile, FinalFile:
		return false
	}
	return !strings.HasPrefix(name, ".")
}

// ListTaskResults reads every task result in runDir, ordered by task id.
func ListTaskResults(runDir string) ([]*TaskResult, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("reading run dir: %w", err)
	}
	var results []*TaskResult
	for _, e := range entries {
		if e.IsDir() || !isTaskResultFile(e.Name()) {
			continue
		}
		r, err := ReadTaskResult(filepath.Join(runDir, e.Name()))
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func WriteManifest(runDir string, m *Manifest) error {
	return writeJSONAtomic(filepath.Join(runDir, ManifestFile), m)
}

func ReadManifest(runDir string) (*Manifest, error) {
	var m Manifest
	if err := readJSON(filepath.Join(runDir, ManifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Grade artifacts are derived data and are replaced on re-evaluation.

func WriteGrade(runDir string, g *TaskGrade) error {
	return writeJSONAtomic(GradePath(runDir, g.TaskID), g)
}

func WriteGrades(runDir string, g *Grades) error {
	return writeJSONAtomic(filepath.Join(runDir, GradesFile), g)
}

func ReadGrades(runDir string) (*Grades, error) {
	var g Grades
	if err := readJSON(filepath.Join(runDir, GradesFile), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func WriteFinal(runDir string, s *FinalSummary) error {
	return writeJSONAtomic(filepath.Join(runDir, FinalFile), s)
}

func ReadFinal(runDir string) (*FinalSummary, error) {
	var s FinalSummary
	if err := readJSON(filepath.Join(runDir, FinalFile), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
