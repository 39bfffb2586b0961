package server

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecall/client"
	"pipecall/codec"
	"pipecall/logging"
	"pipecall/middleware"
	"pipecall/service"
	"pipecall/transport"
)

var arithDesc = service.Description{
	Name: "Arith",
	Operations: []service.Operation{
		{Name: "Add", Params: []*codec.Type{codec.TypeInt32, codec.TypeInt32}, Returns: codec.TypeInt32},
		{Name: "Divide", Params: []*codec.Type{codec.TypeInt32, codec.TypeInt32}, Returns: codec.TypeInt32},
		{Name: "Crash", Returns: codec.TypeInt32},
		{Name: "Wrong", Returns: codec.TypeString},
	},
}

var errDivideByZero = errors.New("Attempted to divide by zero.")

func arithTable(t *testing.T) *service.Table {
	t.Helper()
	table, err := service.NewTable(arithDesc, map[string]service.Invoker{
		"Add": func(_ context.Context, args []codec.Value) (codec.Value, error) {
			return codec.Int32(args[0].Int32() + args[1].Int32()), nil
		},
		"Divide": func(_ context.Context, args []codec.Value) (codec.Value, error) {
			if args[1].Int32() == 0 {
				return codec.Null(), errDivideByZero
			}
			return codec.Int32(args[0].Int32() / args[1].Int32()), nil
		},
		"Crash": func(_ context.Context, _ []codec.Value) (codec.Value, error) {
			panic("invoker blew up")
		},
		"Wrong": func(_ context.Context, _ []codec.Value) (codec.Value, error) {
			// declared as string, returns an int
			return codec.Int32(1), nil
		},
	})
	require.NoError(t, err)
	return table
}

type harness struct {
	caller *transport.Channel
	d      *client.Dispatcher
	stub   *service.Stub
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, mws ...middleware.Middleware) *harness {
	t.Helper()
	caller, callee := transport.Pipe(transport.WithLogger(logging.NewTest(t)))

	accepted := make(chan error, 1)
	go func() { accepted <- callee.Accept() }()
	require.NoError(t, caller.Dial())
	require.NoError(t, <-accepted)

	host := NewHost(arithTable(t), logging.NewTest(t))
	host.Use(mws...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{caller: caller, done: make(chan error, 1), cancel: cancel}
	go func() { h.done <- host.Serve(ctx, callee) }()

	h.d = client.NewDispatcher(caller, logging.NewTest(t))
	stub, err := service.NewStub(arithDesc, h.d)
	require.NoError(t, err)
	h.stub = stub

	t.Cleanup(func() {
		cancel()
		caller.Close()
		callee.Close()
		<-h.done
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err // keep it for Cleanup
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func remoteMessage(t *testing.T, err error) string {
	t.Helper()
	var remote *client.RemoteError
	require.True(t, errors.As(err, &remote), "want *client.RemoteError, got %v", err)
	return remote.Message
}

func TestServeAdd(t *testing.T) {
	h := start(t)

	got, err := h.stub.Call("Add", codec.Int32(5), codec.Int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(8), got.Int32())
}

func TestUnknownOperationKeepsServing(t *testing.T) {
	h := start(t)

	_, err := h.d.Invoke("Multiply", []codec.Value{codec.Int32(2), codec.Int32(3)},
		[]*codec.Type{codec.TypeInt32, codec.TypeInt32}, codec.TypeInt32)
	assert.Equal(t, "Method not found: Multiply", remoteMessage(t, err))

	got, err := h.stub.Call("Add", codec.Int32(2), codec.Int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(5), got.Int32())
}

func TestArgumentFaultsKeepServing(t *testing.T) {
	h := start(t)

	// too few arguments
	_, err := h.d.Invoke("Add", []codec.Value{codec.Int32(1)}, []*codec.Type{codec.TypeInt32}, codec.TypeInt32)
	assert.Equal(t, "Argument count mismatch for Add: expected 2, got 1", remoteMessage(t, err))

	// argument encoded as the wrong category
	_, err = h.d.Invoke("Add", []codec.Value{codec.String("1"), codec.Int32(2)},
		[]*codec.Type{codec.TypeString, codec.TypeInt32}, codec.TypeInt32)
	assert.Contains(t, remoteMessage(t, err), "type mismatch")

	got, err := h.stub.Call("Add", codec.Int32(40), codec.Int32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(42), got.Int32())
}

func TestInvokerErrorTextIsVerbatim(t *testing.T) {
	h := start(t)

	_, err := h.stub.Call("Divide", codec.Int32(1), codec.Int32(0))
	assert.Equal(t, "Attempted to divide by zero.", remoteMessage(t, err))

	got, err := h.stub.Call("Divide", codec.Int32(9), codec.Int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.Int32())
}

func TestPanicBecomesFailure(t *testing.T) {
	h := start(t)

	_, err := h.stub.Call("Crash")
	assert.Equal(t, "panic in Crash: invoker blew up", remoteMessage(t, err))

	_, err = h.stub.Call("Add", codec.Int32(1), codec.Int32(1))
	require.NoError(t, err)
}

func TestResultEncodeFaultIsFailure(t *testing.T) {
	h := start(t)

	_, err := h.stub.Call("Wrong")
	assert.Contains(t, remoteMessage(t, err), "Wrong result")
	assert.Equal(t, transport.StateReady, h.caller.State())
}

func TestRateLimitedHost(t *testing.T) {
	h := start(t, middleware.RateLimit(0.001, 1))

	_, err := h.stub.Call("Add", codec.Int32(1), codec.Int32(1))
	require.NoError(t, err)

	_, err = h.stub.Call("Add", codec.Int32(1), codec.Int32(1))
	assert.Equal(t, "rate limit exceeded", remoteMessage(t, err))
}

func TestServeEndsCleanlyWhenCallerCloses(t *testing.T) {
	h := start(t)

	_, err := h.stub.Call("Add", codec.Int32(1), codec.Int32(1))
	require.NoError(t, err)

	require.NoError(t, h.d.Close())
	assert.NoError(t, h.wait(t))
}

func TestServeReportsTruncatedFrame(t *testing.T) {
	upR, upW := io.Pipe()
	downR, downW := io.Pipe()
	caller := transport.New(downR, upW)
	callee := transport.New(upR, downW)
	defer caller.Close()

	accepted := make(chan error, 1)
	go func() { accepted <- callee.Accept() }()
	require.NoError(t, caller.Dial())
	require.NoError(t, <-accepted)

	done := make(chan error, 1)
	go func() { done <- NewHost(arithTable(t), nil).Serve(context.Background(), callee) }()

	// call id and half an operation name, then hang up
	_, err := upW.Write([]byte{1, 0, 0, 0, 3, 'A'})
	require.NoError(t, err)
	upW.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrTransport)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	h := start(t)
	h.cancel()
	assert.NoError(t, h.wait(t))
}

func TestFramesStayAligned(t *testing.T) {
	h := start(t)

	// an unknown operation carrying argument blocks must not desync the stream
	bogus := make([]*codec.Type, 3)
	args := make([]codec.Value, 3)
	for i := range bogus {
		bogus[i] = codec.TypeString
		args[i] = codec.String("padding")
	}
	_, err := h.d.Invoke("Nope", args, bogus, codec.TypeInt32)
	assert.Equal(t, "Method not found: Nope", remoteMessage(t, err))

	got, err := h.stub.Call("Add", codec.Int32(7), codec.Int32(8))
	require.NoError(t, err)
	assert.Equal(t, int32(15), got.Int32())
}
