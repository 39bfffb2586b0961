package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecall/codec"
	"pipecall/loadbalance"
	"pipecall/logging"
	"pipecall/message"
	"pipecall/registry"
	"pipecall/transport"
)

// whoami answers every call with the worker's name.
func whoami(name string) handlerFunc {
	return func(req *message.Request) *message.Response {
		out, _ := codec.Encode(codec.String(name), codec.TypeString)
		return message.Success(req.CallID, out)
	}
}

func newPool(t *testing.T, names ...string) *Pool {
	t.Helper()
	p := NewPool(nil, logging.NewTest(t))
	for _, name := range names {
		caller, callee := transport.Pipe()
		d := connect(t, caller, callee, whoami(name))
		p.Add(registry.Instance{ID: name, Service: "Demo"}, d)
	}
	return p
}

func callWho(t *testing.T, p *Pool) string {
	t.Helper()
	v, err := p.Invoke("Who", nil, nil, codec.TypeString)
	require.NoError(t, err)
	return v.Str()
}

func TestPoolRoundRobin(t *testing.T) {
	p := newPool(t, "w1", "w2", "w3")
	defer p.Close()

	var got []string
	for i := 0; i < 6; i++ {
		got = append(got, callWho(t, p))
	}
	assert.Equal(t, []string{"w1", "w2", "w3", "w1", "w2", "w3"}, got)
}

func TestPoolInvokeKeyIsSticky(t *testing.T) {
	p := newPool(t, "w1", "w2", "w3")
	defer p.Close()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("session-%d", i)
		first, err := p.InvokeKey(key, "Who", nil, nil, codec.TypeString)
		require.NoError(t, err)
		again, err := p.InvokeKey(key, "Who", nil, nil, codec.TypeString)
		require.NoError(t, err)
		assert.Equal(t, first.Str(), again.Str(), "key %s", key)
	}
}

func TestPoolRemove(t *testing.T) {
	p := newPool(t, "w1", "w2")
	defer p.Close()

	require.NoError(t, p.Remove("w1"))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "w2", callWho(t, p))
	assert.Equal(t, "w2", callWho(t, p))

	require.ErrorIs(t, p.Remove("w1"), registry.ErrNotFound)
}

func TestPoolEmpty(t *testing.T) {
	p := NewPool(nil, nil)

	_, err := p.Invoke("Who", nil, nil, codec.TypeString)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)

	_, err = p.InvokeKey("k", "Who", nil, nil, codec.TypeString)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
}

func TestPoolCloseClosesWorkers(t *testing.T) {
	p := newPool(t, "w1", "w2")
	instances := p.Instances()
	require.Len(t, instances, 2)

	require.NoError(t, p.Close())
	assert.Zero(t, p.Len())

	_, err := p.Invoke("Who", nil, nil, codec.TypeString)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
}

// addWorker pools one worker and returns its callee end.
func addWorker(t *testing.T, p *Pool, name string) (*Dispatcher, *transport.Channel) {
	t.Helper()
	caller, callee := transport.Pipe()
	d := connect(t, caller, callee, whoami(name))
	p.Add(registry.Instance{ID: name, Service: "Demo"}, d)
	return d, callee
}

func TestPoolEvictsWorkerWhoseChildDied(t *testing.T) {
	p := NewPool(nil, logging.NewTest(t))
	defer p.Close()
	d1, callee1 := addWorker(t, p, "w1")
	addWorker(t, p, "w2")

	require.NoError(t, callee1.Close())

	failed := 0
	for i := 0; i < 10; i++ {
		v, err := p.Invoke("Who", nil, nil, codec.TypeString)
		if err != nil {
			failed++
			continue
		}
		assert.Equal(t, "w2", v.Str())
	}

	// only the call that discovered the broken channel fails
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "w2", p.Instances()[0].ID)
	assert.Equal(t, transport.StateFaulted, d1.Channel().State())
}

func TestPoolSkipsFaultedWorker(t *testing.T) {
	p := NewPool(nil, logging.NewTest(t))
	defer p.Close()
	d1, _ := addWorker(t, p, "w1")
	addWorker(t, p, "w2")

	d1.Channel().Fault(errors.New("broken pipe"))

	for i := 0; i < 4; i++ {
		assert.Equal(t, "w2", callWho(t, p))
	}
	assert.Equal(t, 1, p.Len())

	for i := 0; i < 4; i++ {
		v, err := p.InvokeKey(fmt.Sprintf("k%d", i), "Who", nil, nil, codec.TypeString)
		require.NoError(t, err)
		assert.Equal(t, "w2", v.Str())
	}
}

func TestPoolEvictsLastWorker(t *testing.T) {
	p := NewPool(nil, logging.NewTest(t))
	d1, _ := addWorker(t, p, "w1")
	require.NoError(t, d1.Close())

	_, err := p.Invoke("Who", nil, nil, codec.TypeString)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
	assert.Zero(t, p.Len())
}

func TestPoolWatchDropsDeregisteredWorker(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(nil, logging.NewTest(t))
	defer p.Close()
	d1, _ := addWorker(t, p, "w1")
	addWorker(t, p, "w2")
	require.NoError(t, reg.Register(ctx, registry.Instance{ID: "w1", Service: "Demo"}, 10))
	require.NoError(t, reg.Register(ctx, registry.Instance{ID: "w2", Service: "Demo"}, 10))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Watch(ctx, reg, "Demo")
	}()

	require.NoError(t, reg.Deregister(ctx, "Demo", "w1"))

	require.Eventually(t, func() bool { return p.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "w2", p.Instances()[0].ID)
	assert.Equal(t, transport.StateClosed, d1.Channel().State())
	assert.Equal(t, "w2", callWho(t, p))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
