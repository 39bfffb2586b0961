package process

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"pipecall/transport"
)

var ErrArgCount = errors.New("process: expected exactly two descriptor arguments")

// Attach is the child side of Spawn. args must be exactly the two descriptor
// numbers the parent appended: the inbound (read) end first, then the
// outbound (write) end. It runs the callee half of the handshake and returns
// a Ready channel.
func Attach(args []string, opts ...transport.Option) (*transport.Channel, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w, got %d", ErrArgCount, len(args))
	}

	in, err := openFD(args[0], "pipecall-in")
	if err != nil {
		return nil, err
	}
	out, err := openFD(args[1], "pipecall-out")
	if err != nil {
		in.Close()
		return nil, err
	}

	ch := transport.New(in, out, opts...)
	if err := ch.Accept(); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func openFD(arg, name string) (*os.File, error) {
	fd, err := strconv.ParseUint(arg, 10, 31)
	if err != nil {
		return nil, fmt.Errorf("process: descriptor argument %q: %w", arg, err)
	}
	f := os.NewFile(uintptr(fd), name)
	if f == nil {
		return nil, fmt.Errorf("process: descriptor %d is not valid", fd)
	}
	return f, nil
}
