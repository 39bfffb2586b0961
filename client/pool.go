package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/loadbalance"
	"pipecall/process"
	"pipecall/registry"
	"pipecall/transport"
)

type worker struct {
	instance   registry.Instance
	dispatcher *Dispatcher
	child      *process.Child // nil when the channel was attached directly
}

// Pool spreads calls over several children of the same service. Every worker
// keeps its own channel, so each still has at most one call in flight.
type Pool struct {
	balancer loadbalance.Balancer
	ring     *loadbalance.ConsistentHashBalancer
	logger   *zap.Logger

	mu        sync.RWMutex
	instances []registry.Instance
	workers   map[string]*worker
}

// NewPool returns an empty pool. A nil balancer means round robin.
func NewPool(balancer loadbalance.Balancer, logger *zap.Logger) *Pool {
	if balancer == nil {
		balancer = &loadbalance.RoundRobinBalancer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		balancer: balancer,
		ring:     loadbalance.NewConsistentHashBalancer(),
		logger:   logger,
		workers:  make(map[string]*worker),
	}
}

// SpawnPool starts n children with cfg and pools their dispatchers. If any
// spawn fails the children already started are shut down.
func SpawnPool(ctx context.Context, n int, cfg process.Config, balancer loadbalance.Balancer, logger *zap.Logger, opts ...process.Option) (*Pool, error) {
	p := NewPool(balancer, logger)
	opts = append([]process.Option{process.WithLogger(p.logger)}, opts...)

	for i := 0; i < n; i++ {
		child, err := process.Spawn(ctx, cfg, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("spawn worker %d: %w", i, err)
		}
		p.add(&worker{
			instance:   child.Instance(),
			dispatcher: NewDispatcher(child.Channel(), p.logger),
			child:      child,
		})
	}
	return p, nil
}

// Add pools a dispatcher under the given instance.
func (p *Pool) Add(instance registry.Instance, d *Dispatcher) {
	p.add(&worker{instance: instance, dispatcher: d})
}

func (p *Pool) add(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[w.instance.ID] = w
	p.instances = append(p.instances, w.instance)
	inst := w.instance
	p.ring.Add(&inst)
	p.logger.Debug("worker added", zap.String("id", inst.ID), zap.Int("pid", inst.PID))
}

// Remove drops a worker and releases it.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	if ok {
		p.drop(id)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, id)
	}
	return w.release()
}

// drop must be called with mu held.
func (p *Pool) drop(id string) {
	delete(p.workers, id)
	for i, inst := range p.instances {
		if inst.ID == id {
			p.instances = append(p.instances[:i:i], p.instances[i+1:]...)
			break
		}
	}
	p.ring.Remove(id)
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Instances returns the pooled workers in the order they were added.
func (p *Pool) Instances() []registry.Instance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]registry.Instance(nil), p.instances...)
}

// Invoke runs the call on the worker the balancer picks. Workers whose
// channel is closed or faulted are dropped from the pool and the pick is
// repeated.
func (p *Pool) Invoke(op string, args []codec.Value, argTypes []*codec.Type, ret *codec.Type) (codec.Value, error) {
	return p.invoke(func() (*registry.Instance, error) {
		return p.balancer.Pick(p.instances)
	}, op, args, argTypes, ret)
}

// InvokeKey runs the call on the worker that owns key on the hash ring, so
// calls sharing a key reach the same child while the pool is unchanged.
func (p *Pool) InvokeKey(key, op string, args []codec.Value, argTypes []*codec.Type, ret *codec.Type) (codec.Value, error) {
	return p.invoke(func() (*registry.Instance, error) {
		return p.ring.Pick(key)
	}, op, args, argTypes, ret)
}

// invoke calls pick under the read lock until it yields a live worker.
func (p *Pool) invoke(pick func() (*registry.Instance, error), op string, args []codec.Value, argTypes []*codec.Type, ret *codec.Type) (codec.Value, error) {
	for {
		p.mu.RLock()
		inst, err := pick()
		var (
			id string
			w  *worker
		)
		if err == nil {
			id = inst.ID
			w = p.workers[id]
		}
		p.mu.RUnlock()

		if err != nil {
			return codec.Null(), err
		}
		if w == nil || !w.live() {
			p.evict(w, id, "channel no longer usable")
			continue
		}

		v, err := w.dispatcher.Invoke(op, args, argTypes, ret)
		if err != nil && !w.live() {
			p.evict(w, id, "call broke the channel")
		}
		return v, err
	}
}

// evict removes w if it is still the worker registered under id.
func (p *Pool) evict(w *worker, id, reason string) {
	p.mu.Lock()
	if p.workers[id] != w {
		p.mu.Unlock()
		return
	}
	p.drop(id)
	p.mu.Unlock()

	p.logger.Warn("worker evicted", zap.String("id", id), zap.String("reason", reason))
	if w == nil {
		return
	}
	if err := w.release(); err != nil {
		p.logger.Warn("worker release", zap.String("id", id), zap.Error(err))
	}
}

// Watch keeps the pool in step with the registry: a worker of service whose
// registration is missing from the current list, for instance after its lease
// expired or an operator removed it, is dropped and released. Every pooled
// worker of service is expected to be registered. Watch returns when ctx is
// done.
func (p *Pool) Watch(ctx context.Context, reg registry.Registry, service string) {
	updates := reg.Watch(ctx, service)

	// changes made before the subscription are only visible through Discover
	if current, err := reg.Discover(ctx, service); err == nil {
		p.reconcile(service, current)
	} else if ctx.Err() == nil {
		p.logger.Warn("initial discover failed", zap.String("service", service), zap.Error(err))
	}

	for list := range updates {
		p.reconcile(service, list)
	}
}

func (p *Pool) reconcile(service string, list []registry.Instance) {
	live := make(map[string]bool, len(list))
	for _, inst := range list {
		live[inst.ID] = true
	}

	var gone []*worker
	p.mu.Lock()
	for id, w := range p.workers {
		if w.instance.Service == service && !live[id] {
			p.drop(id)
			gone = append(gone, w)
		}
	}
	p.mu.Unlock()

	for _, w := range gone {
		p.logger.Warn("worker evicted", zap.String("id", w.instance.ID), zap.String("reason", "deregistered"))
		if err := w.release(); err != nil {
			p.logger.Warn("worker release", zap.String("id", w.instance.ID), zap.Error(err))
		}
	}
}

// Close releases every worker. Spawned children are shut down and their
// cleanup faults are included in the returned error.
func (p *Pool) Close() error {
	p.mu.Lock()
	workers := p.workers
	p.workers = make(map[string]*worker)
	p.instances = nil
	p.ring = loadbalance.NewConsistentHashBalancer()
	p.mu.Unlock()

	var err error
	for _, w := range workers {
		err = multierr.Append(err, w.release())
	}
	return err
}

func (w *worker) live() bool {
	switch w.dispatcher.Channel().State() {
	case transport.StateClosed, transport.StateFaulted:
		return false
	}
	return true
}

func (w *worker) release() error {
	if w.child != nil {
		w.child.Shutdown()
		return w.child.Faults()
	}
	return w.dispatcher.Close()
}
