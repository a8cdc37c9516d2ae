package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/signalnine/worldbench/internal/world"
)

// processInstance is a world running as a child process in its own process
// group, so teardown reaches anything the world itself spawned.
type processInstance struct {
	cmd     *exec.Cmd
	done    chan struct{}
	logFile *os.File
}

func startProcess(spec *world.Spec, exe string, port int, instance string, opts Options) (*processInstance, error) {
	logFile, err := openLog(opts.LogDir, fmt.Sprintf("world-%s-%d.log", spec.Name, port))
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, serveArgs(spec, port, instance)...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.SysProcAttr = sysProcAttr()
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("starting world process: %w", err)
	}
	p := &processInstance{cmd: cmd, done: make(chan struct{}), logFile: logFile}
	go func() {
		cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *processInstance) exited() <-chan struct{} {
	return p.done
}

// stop sends SIGTERM to the group, escalates to SIGKILL after grace, then
// checks that the group is gone.
func (p *processInstance) stop(ctx context.Context, grace time.Duration) error {
	defer func() {
		if p.logFile != nil {
			p.logFile.Close()
		}
	}()
	pid := p.cmd.Process.Pid

	signalGroup(pid, syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		signalGroup(pid, syscall.SIGKILL)
		select {
		case <-p.done:
		case <-ctx.Done():
			return fmt.Errorf("world process %d did not exit: %w", pid, ctx.Err())
		}
	}
	// the leader is gone; sweep stragglers in its group
	if groupAlive(pid) {
		signalGroup(pid, syscall.SIGKILL)
		deadline := time.Now().Add(2 * time.Second)
		for groupAlive(pid) {
			if time.Now().After(deadline) {
				return fmt.Errorf("processes in group %d survived teardown", pid)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}
