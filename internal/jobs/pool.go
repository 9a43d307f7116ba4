package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// PoolStats reports the current state of the job pool.
type PoolStats struct {
	Pending   int   `json:"pending"`
	Running   int   `json:"running"`
	Completed int64 `json:"completed"`
}

// WorkerPool runs job functions. With workers > 0 it keeps that many
// goroutines draining a bounded queue; with workers == 0 every accepted
// task gets its own goroutine and the queue is never full.
type WorkerPool struct {
	tasks   chan func()
	workers int
	log     zerolog.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	running   atomic.Int64
	completed atomic.Int64
}

// NewWorkerPool creates a pool. queueSize is ignored when workers is 0.
func NewWorkerPool(workers, queueSize int, log zerolog.Logger) *WorkerPool {
	if workers < 0 {
		workers = 0
	}
	if queueSize < 1 {
		queueSize = 1
	}
	wp := &WorkerPool{workers: workers, log: log}
	if workers > 0 {
		wp.tasks = make(chan func(), queueSize)
	}
	return wp
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	if wp.workers > 0 {
		wp.log.Info().Int("workers", wp.workers).Int("queue_size", cap(wp.tasks)).Msg("job worker pool started")
	} else {
		wp.log.Info().Msg("job worker pool started (unbounded)")
	}
}

// Stop rejects new tasks, lets queued and running tasks finish and waits for
// them.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	if wp.tasks != nil {
		close(wp.tasks)
	}
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.log.Info().Int64("completed", wp.completed.Load()).Msg("job worker pool stopped")
}

// Enqueue adds a task. Returns false if the queue is full or the pool is
// stopped.
func (wp *WorkerPool) Enqueue(task func()) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return false
	}
	if wp.tasks == nil {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			wp.run(task)
		}()
		return true
	}
	select {
	case wp.tasks <- task:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() PoolStats {
	pending := 0
	if wp.tasks != nil {
		pending = len(wp.tasks)
	}
	return PoolStats{
		Pending:   pending,
		Running:   int(wp.running.Load()),
		Completed: wp.completed.Load(),
	}
}

// Workers returns the number of worker goroutines; 0 means unbounded.
func (wp *WorkerPool) Workers() int { return wp.workers }

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task func()) {
	wp.running.Add(1)
	defer func() {
		wp.running.Add(-1)
		wp.completed.Add(1)
		if r := recover(); r != nil {
			wp.log.Error().Interface("panic", r).Msg("job task panicked")
		}
	}()
	task()
}
