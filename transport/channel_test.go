package transport

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecall/logging"
	"pipecall/message"
	"pipecall/protocol"
)

// handshake connects both ends of an in-memory pair.
func handshake(t *testing.T) (caller, callee *Channel) {
	t.Helper()
	caller, callee = Pipe(WithLogger(logging.NewTest(t)))
	t.Cleanup(func() {
		caller.Close()
		callee.Close()
	})

	accepted := make(chan error, 1)
	go func() { accepted <- callee.Accept() }()

	require.NoError(t, caller.Dial())
	require.NoError(t, <-accepted)
	return caller, callee
}

// rawPeer gives a test direct access to the far side of a channel.
type rawPeer struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newRawPair() (*Channel, *rawPeer) {
	upR, upW := io.Pipe()
	downR, downW := io.Pipe()
	return New(downR, upW), &rawPeer{r: upR, w: downW}
}

func (p *rawPeer) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(p.r, b[:])
	return b[0], err
}

func (p *rawPeer) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestHandshake(t *testing.T) {
	caller, callee := handshake(t)
	assert.Equal(t, StateReady, caller.State())
	assert.Equal(t, StateReady, callee.State())
	assert.Equal(t, caller.ID(), callee.ID())
}

func TestHandshakeRejectsWrongReply(t *testing.T) {
	ch, peer := newRawPair()
	defer ch.Close()

	go func() {
		greeting, err := protocol.ReadString(peer, 16)
		if err == nil && greeting == "PING" {
			protocol.WriteString(peer.w, "PANG")
		}
	}()

	err := ch.Dial()
	require.ErrorIs(t, err, ErrHandshake)
	assert.Equal(t, StateFaulted, ch.State())

	// no call can be issued on a channel that never became ready
	err = ch.SendRequest(&message.Request{CallID: 1, Operation: "Add"})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestHandshakeFailsWhenPeerHangsUp(t *testing.T) {
	ch, peer := newRawPair()
	defer ch.Close()

	go func() {
		protocol.ReadString(peer, 16)
		peer.w.Close()
	}()

	err := ch.Dial()
	require.ErrorIs(t, err, ErrHandshake)
	require.ErrorIs(t, err, io.EOF)
}

func TestAcceptRejectsWrongGreeting(t *testing.T) {
	upR, upW := io.Pipe()
	downR, downW := io.Pipe()
	callee := New(upR, downW)
	defer callee.Close()
	defer downR.Close()

	go protocol.WriteString(upW, "HELLO")

	err := callee.Accept()
	require.ErrorIs(t, err, ErrHandshake)
	assert.Equal(t, StateFaulted, callee.State())
}

func TestDialTwice(t *testing.T) {
	caller, _ := handshake(t)
	require.ErrorIs(t, caller.Dial(), ErrNotReady)
}

func TestFrameExchange(t *testing.T) {
	caller, callee := handshake(t)

	go func() {
		req, err := callee.RecvRequest()
		if err != nil {
			return
		}
		callee.SendResponse(message.Success(req.CallID, req.Args[0]))
	}()

	require.NoError(t, caller.SendRequest(&message.Request{
		CallID:    1,
		Operation: "Echo",
		Args:      [][]byte{{2, 0, 0, 0, 0}},
	}))

	resp, err := caller.RecvResponse()
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.CallID)
	assert.True(t, resp.Success)
	assert.Equal(t, []byte{2, 0, 0, 0, 0}, resp.Result)
}

func TestPeerCloseEndsRecvRequest(t *testing.T) {
	caller, callee := handshake(t)
	require.NoError(t, caller.Close())

	_, err := callee.RecvRequest()
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, StateFaulted, callee.State())
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	caller, _ := handshake(t)

	done := make(chan error, 1)
	go func() {
		_, err := caller.RecvResponse()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	caller.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending read was not released by Close")
	}
	assert.Equal(t, StateClosed, caller.State())
	assert.ErrorIs(t, caller.SendRequest(&message.Request{}), ErrClosed)
}

func TestClosedChannelReportsTransportFault(t *testing.T) {
	caller, _ := handshake(t)
	require.NoError(t, caller.Close())

	// teardown before the read starts looks the same as teardown during it
	_, err := caller.RecvResponse()
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, ErrClosed)

	err = caller.SendRequest(&message.Request{CallID: 1, Operation: "Add"})
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, ErrClosed)
}

// hookReader runs after once at least n bytes have been read.
type hookReader struct {
	r     io.ReadCloser
	n     int
	read  int
	after func()
}

func (h *hookReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	h.read += n
	if h.after != nil && h.read >= h.n {
		after := h.after
		h.after = nil
		after()
	}
	return n, err
}

func (h *hookReader) Close() error { return h.r.Close() }

func TestCloseDuringHandshakeWins(t *testing.T) {
	upR, upW := io.Pipe()
	downR, downW := io.Pipe()
	defer upR.Close()
	defer downW.Close()

	// the PONG arrives intact, but the channel is closed before Dial sees it
	in := &hookReader{r: downR, n: 5}
	ch := New(in, upW)
	in.after = func() { ch.Close() }

	go func() {
		peer := bufio.NewReader(upR)
		if greeting, err := protocol.ReadString(peer, 16); err == nil && greeting == "PING" {
			protocol.WriteString(downW, "PONG")
		}
	}()

	err := ch.Dial()
	require.ErrorIs(t, err, ErrHandshake)
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, ch.State())
}

func TestFaultIsSticky(t *testing.T) {
	caller, _ := handshake(t)
	caller.Fault(io.ErrUnexpectedEOF)
	caller.Fault(io.ErrClosedPipe)

	assert.Equal(t, StateFaulted, caller.State())
	assert.ErrorIs(t, caller.Err(), io.ErrUnexpectedEOF)

	caller.Close()
	assert.Equal(t, StateFaulted, caller.State())
}
