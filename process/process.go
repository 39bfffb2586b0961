// Package process spawns the child that hosts a service and owns its
// lifetime.
//
// The parent creates two pipes and hands the child its ends as inherited
// descriptors:
//
//	parent                                   child
//	  upW   ── caller→callee ──► fd 3 (ChildReadFD)
//	  downR ◄── callee→caller ── fd 4 (ChildWriteFD)
//
// The descriptor numbers are appended as the child's last two arguments.
// The child rebuilds the channel with Attach and answers the handshake.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pipecall/protocol"
	"pipecall/registry"
	"pipecall/transport"
)

const (
	ChildReadFD  = 3
	ChildWriteFD = 4

	deregisterTimeout = 5 * time.Second
)

// Config describes the child to start.
type Config struct {
	Path    string    // executable; empty re-executes the running binary
	Args    []string  // placed before the two descriptor arguments
	Env     []string  // appended to the parent's environment
	Service string    // name announced in the registry
	Stderr  io.Writer // child's stderr; nil inherits the parent's
}

type options struct {
	logger   *zap.Logger
	registry registry.Registry
	ttl      int64
	limits   protocol.Limits
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry announces the child under Config.Service for ttl seconds,
// renewed until Shutdown.
func WithRegistry(r registry.Registry, ttl int64) Option {
	return func(o *options) {
		o.registry = r
		o.ttl = ttl
	}
}

func WithLimits(l protocol.Limits) Option {
	return func(o *options) { o.limits = l }
}

// Child is a running child process plus the parent's end of its channel.
// Keep the Child reachable for as long as its channel is in use: an
// unreachable Child is eventually torn down by the runtime.
type Child struct {
	res      *resources
	ch       *transport.Channel
	instance registry.Instance
	cleanup  runtime.Cleanup
}

// resources is everything Shutdown releases. It is kept apart from Child so
// the runtime cleanup can run without resurrecting the Child.
type resources struct {
	cmd      *exec.Cmd
	ch       *transport.Channel
	logger   *zap.Logger
	registry registry.Registry
	instance registry.Instance

	once   sync.Once
	mu     sync.Mutex
	faults error
}

// Spawn starts the child, passes it both pipe ends and completes the caller
// side of the handshake. On any failure the child is killed and every
// descriptor released before the error is returned. Cancelling ctx before
// the handshake completes aborts it.
func Spawn(ctx context.Context, cfg Config, opts ...Option) (*Child, error) {
	o := options{logger: zap.NewNop(), limits: protocol.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}

	path := cfg.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}

	upR, upW, err := os.Pipe() // caller -> callee
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}
	downR, downW, err := os.Pipe() // callee -> caller
	if err != nil {
		closeAll(upR, upW)
		return nil, fmt.Errorf("create pipe: %w", err)
	}

	args := append(append([]string(nil), cfg.Args...), strconv.Itoa(ChildReadFD), strconv.Itoa(ChildWriteFD))
	cmd := exec.Command(path, args...)
	cmd.ExtraFiles = []*os.File{upR, downW} // fd 3, fd 4
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		closeAll(upR, upW, downR, downW)
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	// the child holds its own copies now; ours would mask its exit as a hang
	closeAll(upR, downW)

	ch := transport.New(downR, upW,
		transport.WithLimits(o.limits),
		transport.WithLogger(o.logger),
	)
	logger := o.logger.With(zap.Stringer("channel", ch.ID()), zap.Int("pid", cmd.Process.Pid))

	res := &resources{cmd: cmd, ch: ch, logger: logger}

	stop := context.AfterFunc(ctx, func() {
		logger.Debug("spawn cancelled during handshake")
		cmd.Process.Kill()
	})
	err = ch.Dial()
	if !stop() {
		// the kill ran, possibly after a successful handshake
		if err == nil {
			err = fmt.Errorf("spawn cancelled: %w", context.Cause(ctx))
		} else {
			err = fmt.Errorf("%w: %w", err, context.Cause(ctx))
		}
	}
	if err != nil {
		res.release()
		return nil, err
	}

	c := &Child{
		res: res,
		ch:  ch,
		instance: registry.Instance{
			ID:         ch.ID().String(),
			PID:        cmd.Process.Pid,
			Executable: path,
			Service:    cfg.Service,
			StartedAt:  time.Now(),
		},
	}

	if o.registry != nil {
		if err := o.registry.Register(ctx, c.instance, o.ttl); err != nil {
			logger.Warn("registry announce failed", zap.Error(err))
		} else {
			res.registry = o.registry
			res.instance = c.instance
		}
	}

	c.cleanup = runtime.AddCleanup(c, func(r *resources) {
		r.logger.Warn("child released without Shutdown")
		r.release()
	}, res)

	logger.Info("child spawned", zap.String("executable", path))
	return c, nil
}

// Channel returns the parent's end of the handshaked channel.
func (c *Child) Channel() *transport.Channel { return c.ch }

func (c *Child) Pid() int { return c.instance.PID }

func (c *Child) Instance() registry.Instance { return c.instance }

// Shutdown kills the child, waits for it and releases both pipe ends. A call
// blocked on the channel fails with a transport fault. Shutdown is
// idempotent and never fails; cleanup problems are available from Faults.
func (c *Child) Shutdown() {
	c.cleanup.Stop()
	c.res.release()
}

// Faults returns the problems met while releasing the child, combined with
// multierr, or nil.
func (c *Child) Faults() error {
	c.res.mu.Lock()
	defer c.res.mu.Unlock()
	return c.res.faults
}

func (r *resources) release() {
	r.once.Do(func() {
		if r.registry != nil {
			ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
			// a registration that is already gone is not a fault
			if err := r.registry.Deregister(ctx, r.instance.Service, r.instance.ID); !errors.Is(err, registry.ErrNotFound) {
				r.record("deregister", err)
			}
			cancel()
		}

		if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.record("kill", err)
		}

		// the exit status of a child we killed carries no information
		var exitErr *exec.ExitError
		if err := r.cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
			r.record("wait", err)
		}

		r.record("close channel", r.ch.Close())
		r.logger.Debug("child released")
	})
}

func (r *resources) record(step string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("child cleanup fault", zap.String("step", step), zap.Error(err))
	r.mu.Lock()
	r.faults = multierr.Append(r.faults, fmt.Errorf("%s: %w", step, err))
	r.mu.Unlock()
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}
