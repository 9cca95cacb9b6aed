package propagation

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// chunkJob is a contiguous range of grid indices for one worker.
type chunkJob struct {
	start, end int
}

// chunkResult reports the first failure in a chunk, if any.
type chunkResult struct {
	start int
	err   error
}

// WorkerPool splits a time grid into chunks and propagates them on a fixed
// number of goroutines. Each worker writes only its own index range of the
// output, so results are identical to a sequential run.
type WorkerPool struct {
	workers   int
	chunkSize int
	logger    *slog.Logger
}

// NewWorkerPool creates a worker pool. Zero values pick defaults.
func NewWorkerPool(cfg PoolConfig, logger *slog.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	return &WorkerPool{
		workers:   cfg.Workers,
		chunkSize: cfg.ChunkSize,
		logger:    logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// PropagateGrid returns the state at every instant of times. The first
// propagation error (lowest index) is returned and the states discarded.
func (wp *WorkerPool) PropagateGrid(ctx context.Context, prop *SGP4Propagator, times []time.Time) ([]State, error) {
	states := make([]State, len(times))
	if len(times) == 0 {
		return states, nil
	}

	jobs := make(chan chunkJob, wp.workers*2)
	results := make(chan chunkResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := chunkResult{start: job.start}
				for k := job.start; k < job.end; k++ {
					s, err := prop.State(times[k])
					if err != nil {
						res.err = err
						break
					}
					states[k] = s
				}
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for start := 0; start < len(times); start += wp.chunkSize {
			end := min(start+wp.chunkSize, len(times))
			select {
			case jobs <- chunkJob{start: start, end: end}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	firstStart := len(times)
	for res := range results {
		if res.err != nil && res.start < firstStart {
			firstErr, firstStart = res.err, res.start
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		wp.logger.Warn("grid propagation failed",
			"norad_id", prop.NORADID(),
			"chunk_start", firstStart,
			"error", firstErr,
		)
		return nil, firstErr
	}
	return states, nil
}
