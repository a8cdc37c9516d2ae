package runner

import (
	"context"
	"sync"
)

// Job runs on a worker slot in [0, maxWorkers). A slot is held by at most
// one job at a time, so per-slot resources such as ports never collide.
type Job func(ctx context.Context, slot int) error

// RunPool executes jobs with at most maxWorkers concurrently. Jobs not yet
// started when ctx is cancelled are skipped. Returns all errors.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	slots := make(chan int, maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		slots <- i
	}

	for _, job := range jobs {
		var slot int
		select {
		case slot = <-slots:
		case <-ctx.Done():
			wg.Wait()
			return append(errs, ctx.Err())
		}
		if ctx.Err() != nil {
			wg.Wait()
			return append(errs, ctx.Err())
		}
		wg.Add(1)
		go func(j Job, slot int) {
			defer wg.Done()
			defer func() { slots <- slot }()
			if err := j(ctx, slot); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(job, slot)
	}
	wg.Wait()
	return errs
}
