// Package loadbalance picks which worker child serves the next call when a
// pool runs several children of the same service.
//
// Two strategies are implemented:
//   - RoundRobin:     stateless operations, equal workers
//   - ConsistentHash: calls that should keep landing on the same child
package loadbalance

import (
	"errors"

	"pipecall/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is the interface for load balancing strategies.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every pooled call, so it must be goroutine-safe.
	Pick(instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name for logging.
	Name() string
}
