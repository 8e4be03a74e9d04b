// Package pool manages a dynamically sized set of named, independently
// startable and stoppable workers.
//
// It generalizes the single anonymous goroutine pool pattern into a pool
// of addressable long-running workers, each with its own identifier, so a
// caller can scale the pool up or down one worker at a time and stop an
// individual worker without tearing down the rest.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker is anything with a start/stop lifecycle that can run inside a
// Pool slot. jobq.Worker implements this interface.
type Worker interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Factory constructs a new Worker bound to the given worker id.
type Factory func(id string) Worker

// Status is a point-in-time snapshot of pool membership.
type Status struct {
	Running int
	WorkerIDs []string
}

// Pool owns a set of named workers created on demand via Factory.
//
// Pool itself holds no lifecycle state beyond its member map: start/stop
// semantics belong to the individual Worker instances it creates.
type Pool struct {
	mu      sync.Mutex
	factory Factory
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[string]Worker
	seq     int
}

// New creates an empty Pool. Call Start to populate it with n workers.
func New(factory Factory, log *slog.Logger) *Pool {
	return &Pool{
		factory: factory,
		log:     log,
		workers: make(map[string]Worker),
	}
}

func (p *Pool) nextID() string {
	p.seq++
	return fmt.Sprintf("worker-%d", p.seq)
}

// Start launches n workers under ctx. Start is not idempotent-safe to call
// twice with overlapping ids; callers should use ScaleUp for subsequent
// growth.
func (p *Pool) Start(ctx context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < n; i++ {
		if err := p.spawnLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) spawnLocked() error {
	id := p.nextID()
	w := p.factory(id)
	if err := w.Start(p.ctx); err != nil {
		return fmt.Errorf("pool: failed to start %s: %w", id, err)
	}
	p.workers[id] = w
	p.log.Info("worker started", "worker_id", id)
	return nil
}

// ScaleUp adds n additional workers to the pool.
func (p *Pool) ScaleUp(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return fmt.Errorf("pool: scale up called before Start")
	}
	for i := 0; i < n; i++ {
		if err := p.spawnLocked(); err != nil {
			return err
		}
	}
	return nil
}

// ScaleDown gracefully stops up to n workers, chosen arbitrarily among
// current members, waiting up to timeout for each to finish in-flight
// work.
func (p *Pool) ScaleDown(n int, timeout time.Duration) error {
	p.mu.Lock()
	ids := make([]string, 0, n)
	for id := range p.workers {
		if len(ids) >= n {
			break
		}
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := p.stopOne(id, timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pool) stopOne(id string, timeout time.Duration) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	if ok {
		delete(p.workers, id)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if err := w.Stop(timeout); err != nil {
		p.log.Error("worker stop failed", "worker_id", id, "err", err)
		return err
	}
	p.log.Info("worker stopped", "worker_id", id)
	return nil
}

// StopGraceful stops every worker currently in the pool, waiting up to
// timeout (applied per-worker) for in-flight work to finish.
func (p *Pool) StopGraceful(timeout time.Duration) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := p.stopOne(id, timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopImmediate cancels the pool's context and clears membership without
// waiting for in-flight work. Workers still observe ctx cancellation and
// shut down on their own, but StopImmediate does not block on it.
func (p *Pool) StopImmediate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.workers = make(map[string]Worker)
}

// Status reports current pool membership.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	return Status{Running: len(ids), WorkerIDs: ids}
}
