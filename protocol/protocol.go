// Package protocol implements the call framing carried over a channel.
//
// Frames are self-delimited by explicit lengths; there is no header magic or
// version because both ends of a channel are spawned from the same build.
// Fixed-width integers are little-endian. Strings inside frames (operation
// names, error text, handshake literals) carry a 7-bit variable-length
// unsigned prefix followed by UTF-8 bytes.
//
// Request frame:
//
//	┌──────────┬────────────────┬──────────┬─────────────┬───────┬────
//	│ callId   │ operation      │ argCount │ arg[0] len  │ bytes │ ...
//	│ int32    │ uvarint + utf8 │ int32    │ int32       │       │
//	└──────────┴────────────────┴──────────┴─────────────┴───────┴────
//
// Response frame:
//
//	┌──────────┬─────────┬─────────────────────────────────────────┐
//	│ callId   │ success │ success=1: resultLen int32, result bytes │
//	│ int32    │ 1 byte  │ success=0: error, uvarint + utf8         │
//	└──────────┴─────────┴─────────────────────────────────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"pipecall/message"
)

var (
	ErrMalformed     = errors.New("protocol: malformed frame")
	ErrFrameTooLarge = errors.New("protocol: frame exceeds limits")
)

// Reader is what frame decoding needs: byte-at-a-time access for string
// prefixes plus bulk reads. *bufio.Reader and *bytes.Buffer satisfy it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Limits constrains how much memory a single decoded frame may claim.
type Limits struct {
	MaxString uint64 // operation names and error text
	MaxArgs   int32
	MaxBlock  int32 // a single encoded argument or result
}

func DefaultLimits() Limits {
	return Limits{
		MaxString: 1 << 20,
		MaxArgs:   1024,
		MaxBlock:  64 << 20,
	}
}

// AppendString appends a length-prefixed string.
func AppendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// WriteString writes a length-prefixed string in a single Write.
func WriteString(w io.Writer, s string) error {
	_, err := w.Write(AppendString(nil, s))
	return err
}

// ReadString reads a length-prefixed string of at most max bytes.
func ReadString(r Reader, max uint64) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", err
		}
		return "", fmt.Errorf("%w: string length: %v", ErrMalformed, err)
	}
	if n > max {
		return "", fmt.Errorf("%w: string of %d bytes, limit %d", ErrFrameTooLarge, n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", unexpected(err)
	}
	return string(buf), nil
}

// WriteRequest encodes the whole frame first and hands it to w in one Write,
// so a failing writer never leaves half a header behind a successful one.
func WriteRequest(w io.Writer, req *message.Request) error {
	size := 4 + binary.MaxVarintLen64 + len(req.Operation) + 4
	for _, a := range req.Args {
		size += 4 + len(a)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(req.CallID))
	buf = AppendString(buf, req.Operation)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(req.Args)))
	for _, a := range req.Args {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a)))
		buf = append(buf, a...)
	}
	_, err := w.Write(buf)
	return err
}

// ReadRequest reads one complete request frame, including every argument
// block. io.EOF is returned unwrapped only when the stream ended cleanly
// before the frame started.
func ReadRequest(r Reader, limits Limits) (*message.Request, error) {
	callID, err := readInt32(r)
	if err != nil {
		return nil, err
	}

	op, err := ReadString(r, limits.MaxString)
	if err != nil {
		return nil, unexpected(err)
	}

	argc, err := readInt32(r)
	if err != nil {
		return nil, unexpected(err)
	}
	if argc < 0 {
		return nil, fmt.Errorf("%w: argument count %d", ErrMalformed, argc)
	}
	if argc > limits.MaxArgs {
		return nil, fmt.Errorf("%w: %d arguments, limit %d", ErrFrameTooLarge, argc, limits.MaxArgs)
	}

	args := make([][]byte, argc)
	for i := range args {
		if args[i], err = readBlock(r, limits.MaxBlock); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}

	return &message.Request{CallID: callID, Operation: op, Args: args}, nil
}

// WriteResponse encodes and writes one response frame in a single Write.
func WriteResponse(w io.Writer, resp *message.Response) error {
	buf := make([]byte, 0, 4+1+4+len(resp.Result)+len(resp.Error)+binary.MaxVarintLen64)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(resp.CallID))
	if resp.Success {
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(resp.Result)))
		buf = append(buf, resp.Result...)
	} else {
		buf = append(buf, 0)
		buf = AppendString(buf, resp.Error)
	}
	_, err := w.Write(buf)
	return err
}

// ReadResponse reads one complete response frame.
func ReadResponse(r Reader, limits Limits) (*message.Response, error) {
	callID, err := readInt32(r)
	if err != nil {
		return nil, err
	}

	flag, err := r.ReadByte()
	if err != nil {
		return nil, unexpected(err)
	}

	resp := &message.Response{CallID: callID, Success: flag != 0}
	if resp.Success {
		if resp.Result, err = readBlock(r, limits.MaxBlock); err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		return resp, nil
	}

	if resp.Error, err = ReadString(r, limits.MaxString); err != nil {
		return nil, unexpected(err)
	}
	return resp, nil
}

func readBlock(r Reader, max int32) ([]byte, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, unexpected(err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: block length %d", ErrMalformed, n)
	}
	if n > max {
		return nil, fmt.Errorf("%w: block of %d bytes, limit %d", ErrFrameTooLarge, n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, unexpected(err)
	}
	return buf, nil
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

// unexpected turns a clean EOF found mid-frame into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
