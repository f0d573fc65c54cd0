// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Pool runs fire-and-forget side effects (operator alerts) off the request
// path. Submit never blocks; a saturated queue drops the task.
type Pool struct {
	size     int
	queue    chan Task
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *zerolog.Logger
}

type Task func(ctx context.Context) error

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
)

// queueFactor sizes the buffer relative to the number of workers.
const queueFactor = 4

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		size:  workers,
		queue: make(chan Task, workers*queueFactor),
		quit:  make(chan struct{}),
		log:   &l,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.loop(ctx, i)
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			// deliver what was queued before Stop
			for {
				select {
				case task := <-p.queue:
					p.exec(ctx, id, task)
				default:
					return
				}
			}
		case task := <-p.queue:
			p.exec(ctx, id, task)
		}
	}
}

func (p *Pool) exec(ctx context.Context, id int, task Task) {
	err := safeRun(ctx, task)
	if err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task failed")
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task(ctx)
}

// Stop is safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Pending reports how many tasks wait in the queue.
func (p *Pool) Pending() int { return len(p.queue) }

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}
