// Package launcher starts a world for a task or a run, hands out its
// transport descriptor and guarantees teardown.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalnine/worldbench/internal/world"
)

// StartupError means no usable world could be brought up.
type StartupError struct {
	World string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("world %s failed to start: %v", e.World, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

type Options struct {
	// Port overrides the spec's port, e.g. port+slot for parallel workers.
	Port int
	// Executable is the binary that understands `world serve`; defaults to
	// the running executable.
	Executable string
	// Env is appended to the world process environment.
	Env    []string
	LogDir string
	Logger zerolog.Logger
}

// instance is one running world, whatever the runtime.
type instance interface {
	stop(ctx context.Context, grace time.Duration) error
	exited() <-chan struct{}
}

// World is an acquired world. Release must be called exactly once per
// Acquire; extra calls are no-ops.
type World struct {
	spec      *world.Spec
	transport *world.Transport
	inst      instance
	logger    zerolog.Logger

	once       sync.Once
	releaseErr error
}

// Acquire starts a world for spec and blocks until it reports ready.
func Acquire(ctx context.Context, spec *world.Spec, opts Options) (*World, error) {
	port := spec.Port
	if opts.Port > 0 {
		port = opts.Port
	}
	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, &StartupError{World: spec.Name, Err: fmt.Errorf("locating executable: %w", err)}
		}
	}
	logger := opts.Logger.With().Str("world", spec.Name).Int("port", port).Logger()
	w := &World{spec: spec, logger: logger}

	if spec.Runtime == world.RuntimeStdio {
		w.transport = &world.Transport{
			Kind:    world.TransportStdio,
			Command: append([]string{exe}, serveArgs(spec, 0, "")...),
			Env:     opts.Env,
		}
		return w, nil
	}

	if err := checkPortFree(port); err != nil {
		return nil, &StartupError{World: spec.Name, Err: err}
	}

	var (
		inst instance
		err  error
	)
	instanceID := uuid.NewString()
	switch spec.Runtime {
	case world.RuntimeDocker:
		inst, err = startContainer(ctx, spec, port, instanceID, opts)
	default:
		inst, err = startProcess(spec, exe, port, instanceID, opts)
	}
	if err != nil {
		return nil, &StartupError{World: spec.Name, Err: err}
	}
	w.inst = inst

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitReady(ctx, base+world.HealthPath, instanceID, spec.ReadyAttempts, spec.ReadyInterval, inst.exited()); err != nil {
		w.Release()
		return nil, &StartupError{World: spec.Name, Err: err}
	}
	w.transport = &world.Transport{Kind: world.TransportHTTP, URL: base + world.MCPPath}
	logger.Debug().Str("transport", w.transport.String()).Msg("world ready")
	return w, nil
}

// Pid is the world's process id, which is also its process group id. It is
// zero for containers and stdio worlds.
func (w *World) Pid() int {
	if p, ok := w.inst.(*processInstance); ok {
		return p.cmd.Process.Pid
	}
	return 0
}

func (w *World) Transport() *world.Transport {
	return w.transport
}

// Release stops the world and verifies nothing it started survives. It uses
// its own context so teardown still happens after the caller is cancelled.
func (w *World) Release() error {
	w.once.Do(func() {
		if w.inst == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.spec.StopGrace+30*time.Second)
		defer cancel()
		w.releaseErr = w.inst.stop(ctx, w.spec.StopGrace)
		if w.releaseErr != nil {
			w.logger.Error().Err(w.releaseErr).Msg("world teardown failed")
			return
		}
		w.logger.Debug().Msg("world released")
	})
	return w.releaseErr
}

// serveArgs is the `world serve` command line for spec. Port 0 means stdio.
func serveArgs(spec *world.Spec, port int, instance string) []string {
	args := []string{"world", "serve", "--name", spec.Name, "--apps", strings.Join(spec.Apps, ",")}
	if spec.Seed != "" {
		args = append(args, "--seed", spec.Seed)
	}
	if port == 0 {
		return append(args, "--stdio")
	}
	args = append(args, "--port", strconv.Itoa(port))
	if instance != "" {
		args = append(args, "--instance", instance)
	}
	return args
}

func checkPortFree(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("port %d is already in use: %w", port, err)
	}
	return ln.Close()
}

// waitReady polls the health endpoint a bounded number of times until it
// reports ok with our instance id. A world that exits while we wait fails
// immediately, even if something else answers on the port.
func waitReady(ctx context.Context, url, instance string, attempts int, interval time.Duration, exited <-chan struct{}) error {
	client := &http.Client{Timeout: time.Second}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			var health struct {
				Status   string `json:"status"`
				Instance string `json:"instance"`
			}
			json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && health.Status == "ok" {
				if health.Instance != instance {
					return fmt.Errorf("another world answered on %s (instance %q)", url, health.Instance)
				}
				select {
				case <-exited:
					return fmt.Errorf("world exited before becoming ready")
				default:
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("world exited before becoming ready")
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("not ready after %d attempts (%s)", attempts, time.Duration(attempts)*interval)
}

func openLog(dir, name string) (*os.File, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	return f, nil
}
