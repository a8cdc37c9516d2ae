package launcher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/signalnine/worldbench/internal/world"
)

const seedMountDir = "/world"

// containerInstance is a world running in a container on the host network,
// so the same port and transport work as for a local process.
type containerInstance struct {
	cli     *client.Client
	id      string
	done    chan struct{}
	logDir  string
	logName string
}

func startContainer(ctx context.Context, spec *world.Spec, port int, instance string, opts Options) (*containerInstance, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	containerSpec := *spec
	var mounts []mount.Mount
	if spec.Seed != "" {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   filepath.Dir(spec.Seed),
			Target:   seedMountDir,
			ReadOnly: true,
		})
		containerSpec.Seed = seedMountDir + "/" + filepath.Base(spec.Seed)
	}

	initTrue := true
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  spec.Image,
			Cmd:    serveArgs(&containerSpec, port, instance),
			Env:    opts.Env,
			Labels: map[string]string{"worldbench": "true", "worldbench.world": spec.Name},
		},
		HostConfig: &container.HostConfig{
			NetworkMode: "host",
			Mounts:      mounts,
			Init:        &initTrue,
		},
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating container: %w", err)
	}
	c := &containerInstance{
		cli:     cli,
		id:      createResp.ID,
		done:    make(chan struct{}),
		logDir:  opts.LogDir,
		logName: fmt.Sprintf("world-%s-%d.log", spec.Name, port),
	}
	if _, err := cli.ContainerStart(ctx, c.id, client.ContainerStartOptions{}); err != nil {
		c.remove()
		return nil, fmt.Errorf("starting container: %w", err)
	}

	go func() {
		wait := cli.ContainerWait(context.Background(), c.id, client.ContainerWaitOptions{
			Condition: container.WaitConditionNotRunning,
		})
		select {
		case <-wait.Result:
		case <-wait.Error:
		}
		close(c.done)
	}()
	return c, nil
}

func (c *containerInstance) exited() <-chan struct{} {
	return c.done
}

// stop asks the container to stop (SIGTERM, SIGKILL after grace), removes
// it and confirms it is gone.
func (c *containerInstance) stop(ctx context.Context, grace time.Duration) error {
	defer c.cli.Close()
	secs := int(grace.Seconds())
	if _, err := c.cli.ContainerStop(ctx, c.id, client.ContainerStopOptions{Signal: "SIGTERM", Timeout: &secs}); err != nil {
		c.cli.ContainerKill(ctx, c.id, client.ContainerKillOptions{Signal: "SIGKILL"})
	}
	c.captureLogs(ctx)
	if err := c.remove(); err != nil {
		return err
	}
	if _, err := c.cli.ContainerInspect(ctx, c.id, client.ContainerInspectOptions{}); err == nil {
		return fmt.Errorf("container %s survived teardown", shortID(c.id))
	}
	return nil
}

func (c *containerInstance) remove() error {
	if _, err := c.cli.ContainerRemove(context.Background(), c.id, client.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing container %s: %w", shortID(c.id), err)
	}
	return nil
}

// captureLogs keeps the container's output once it is gone.
func (c *containerInstance) captureLogs(ctx context.Context) {
	f, err := openLog(c.logDir, c.logName)
	if err != nil || f == nil {
		return
	}
	defer f.Close()
	r, err := c.cli.ContainerLogs(ctx, c.id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return
	}
	defer r.Close()
	io.Copy(f, r)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
