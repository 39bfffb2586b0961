// Package registry announces spawned child processes so that operators and
// worker pools can see which children are alive and which service they host.
package registry

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("registry: instance not found")

// Instance describes one spawned child serving a channel.
type Instance struct {
	ID         string    `json:"id"` // channel UUID
	PID        int       `json:"pid"`
	Executable string    `json:"executable"`
	Service    string    `json:"service"`
	StartedAt  time.Time `json:"started_at"`
}

type Registry interface {
	Register(ctx context.Context, instance Instance, ttl int64) error
	Deregister(ctx context.Context, service, id string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
	Watch(ctx context.Context, service string) <-chan []Instance
}

func key(service, id string) string {
	return prefix(service) + id
}

func prefix(service string) string {
	return "/pipecall/" + service + "/"
}
