package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"pipecall/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps keys to instances using a hash ring. The same
// key keeps landing on the same child until the ring changes, so a caller can
// pin related calls to one worker.
//
// Each real instance owns N virtual nodes on the ring so that a handful of
// workers still spread evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.RWMutex
	ring  []uint32                      // sorted hash values
	nodes map[uint32]*registry.Instance // hash value → instance
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: defaultReplicas,
		nodes:    make(map[uint32]*registry.Instance),
	}
}

// Add places an instance onto the ring. Virtual node i hashes "{id}#{i}".
func (b *ConsistentHashBalancer) Add(instance *registry.Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE(fmt.Appendf(nil, "%s#%d", instance.ID, i))
		if _, taken := b.nodes[hash]; !taken {
			b.ring = append(b.ring, hash)
		}
		b.nodes[hash] = instance
	}
	// keep the ring sorted for binary search in Pick
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Remove takes every virtual node of the instance off the ring.
func (b *ConsistentHashBalancer) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring := b.ring[:0]
	for _, hash := range b.ring {
		if b.nodes[hash].ID == id {
			delete(b.nodes, hash)
			continue
		}
		ring = append(ring, hash)
	}
	b.ring = ring
}

// Pick finds the instance responsible for key: the first node clockwise from
// the key's hash, wrapping around past the largest.
//
// Pick takes a key rather than an instance list, so it does not implement
// Balancer.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.Instance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
