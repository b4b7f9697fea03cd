package net

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds how many pending connections can queue before
// AddTask blocks; mirrors the teacher's TASK_CHAN_SIZE.
const taskChanSize = 100

// WorkerFunction processes one task (here, a single WebSocket
// connection's read loop) until it errors, is told to stop, or the
// connection closes.
type WorkerFunction func(t *tomb.Tomb, task any) error

// WorkerPool is a bounded pool of goroutines draining a shared task
// channel, lifecycle-managed by a tomb.Tomb. Adapted from the teacher's
// internal/worker.go: there, internal/net/server.go referenced this pool
// as "utils.WorkerPool" from a package that was never created, so it was
// dead code. Here it is a real dependency of the WS hub (ws.go).
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool constructs a pool that will run up to size workers
// concurrently once Setup is called.
func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, taskChanSize),
	}
}

// AddTask enqueues a task for a free worker to pick up. Blocks if every
// worker is busy and the queue is full.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup launches and maintains a full pool of workers under t, each
// running work against tasks pulled off the shared channel, until t dies.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", p.n).Msg("starting worker pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.run(t, work)
		})
	}
}

func (p *WorkerPool) run(t *tomb.Tomb, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task failed")
			}
		}
	}
}
