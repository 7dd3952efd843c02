// Package workerpool runs update tasks concurrently up to a fixed limit and sheds the rest.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Proton-105/stepbot/pkg/metrics"
)

const DefaultMaxInFlight = 15

// ErrPoolFull is returned by Submit when every slot is taken. The task is dropped, not queued.
var ErrPoolFull = errors.New("worker pool is full")

type Task func(ctx context.Context)

type tracked struct {
	done chan struct{}
}

// Pool is a load-shedding pool: Submit never blocks and never buffers.
type Pool struct {
	max int64
	sem *semaphore.Weighted
	log *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	running map[uint64]*tracked
	wg      sync.WaitGroup
}

func New(maxInFlight int, log *slog.Logger) *Pool {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pool{
		max:     int64(maxInFlight),
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		log:     log,
		running: make(map[uint64]*tracked),
	}
}

func (p *Pool) Max() int {
	return int(p.max)
}

// Submit reaps finished tasks, then starts task if a slot is free. The task runs detached from
// ctx cancellation and always runs to completion.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.reap()

	if !p.sem.TryAcquire(1) {
		metrics.RecordPoolRejected()
		return fmt.Errorf("%w: the maximum number (%d) is used", ErrPoolFull, p.max)
	}

	t := &tracked{done: make(chan struct{})}

	p.mu.Lock()
	p.nextID++
	p.running[p.nextID] = t
	inFlight := len(p.running)
	p.mu.Unlock()
	metrics.SetPoolInFlight(inFlight)

	taskCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(t.done)
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("worker task panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()

		task(taskCtx)
	}()

	return nil
}

// reap drops finished tasks from the tracking set.
func (p *Pool) reap() {
	p.mu.Lock()
	for id, t := range p.running {
		select {
		case <-t.done:
			delete(p.running, id)
		default:
		}
	}
	inFlight := len(p.running)
	p.mu.Unlock()

	metrics.SetPoolInFlight(inFlight)
}

// InFlight counts tasks that have not finished yet.
func (p *Pool) InFlight() int {
	p.reap()

	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Wait blocks until all started tasks finish or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.reap()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
