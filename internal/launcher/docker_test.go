package launcher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalnine/worldbench/internal/world"
)

func TestDockerRuntime(t *testing.T) {
	image := os.Getenv("WORLDBENCH_DOCKER_TESTS")
	if image == "" {
		t.Skip("set WORLDBENCH_DOCKER_TESTS=<worldbench image> to run Docker tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	spec := &world.Spec{Name: "docker", Apps: []string{"email"}, Runtime: world.RuntimeDocker, Image: image, Port: freePort(t)}
	if err := spec.Validate(); err != nil {
		t.Fatal(err)
	}
	w, err := Acquire(ctx, spec, Options{LogDir: t.TempDir(), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if w.Transport().Kind != world.TransportHTTP {
		t.Errorf("kind: got %s", w.Transport().Kind)
	}
	if err := w.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := checkPortFree(spec.Port); err != nil {
		t.Errorf("port still bound: %v", err)
	}
}
