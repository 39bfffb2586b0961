package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry keeps instances in process memory. It backs single-host runs
// and tests; ttl is accepted for interface parity and ignored.
type MemoryRegistry struct {
	mu        sync.Mutex
	instances map[string]map[string]Instance // service -> id -> instance
	watchers  map[string][]chan []Instance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[string]map[string]Instance),
		watchers:  make(map[string][]chan []Instance),
	}
}

func (r *MemoryRegistry) Register(ctx context.Context, instance Instance, ttl int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.instances[instance.Service]
	if !ok {
		byID = make(map[string]Instance)
		r.instances[instance.Service] = byID
	}
	byID[instance.ID] = instance
	r.notify(instance.Service)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, service, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[service][id]; !ok {
		return ErrNotFound
	}
	delete(r.instances[service], id)
	r.notify(service)
	return nil
}

func (r *MemoryRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(service), nil
}

// Watch emits the full instance list after every change until ctx is done.
// Slow readers only ever see the latest list.
func (r *MemoryRegistry) Watch(ctx context.Context, service string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	r.mu.Lock()
	r.watchers[service] = append(r.watchers[service], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[service]
		for i, w := range ws {
			if w == ch {
				r.watchers[service] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}

// notify must be called with mu held.
func (r *MemoryRegistry) notify(service string) {
	list := r.snapshot(service)
	for _, ch := range r.watchers[service] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}

func (r *MemoryRegistry) snapshot(service string) []Instance {
	list := make([]Instance, 0, len(r.instances[service]))
	for _, inst := range r.instances[service] {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}
