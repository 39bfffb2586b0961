// Package message defines the envelopes exchanged between a caller and the
// child process that serves it.
//
// Request and Response are the frame-level forms: arguments and results are
// already codec-encoded byte blocks, so a frame can be read in full before
// anyone knows the operation's types. Call is the decoded form handed to the
// host's invokers.
package message

import "pipecall/codec"

// Request is one call frame written by the caller.
//
//	callId int32 | operation (length-prefixed) | argCount int32 | {len int32, bytes}*
type Request struct {
	CallID    int32    // Assigned by the caller, positive and increasing per channel
	Operation string   // Operation name from the service description, e.g. "Add"
	Args      [][]byte // One codec-encoded block per argument
}

// Response answers exactly one Request.
//
//	callId int32 | success bool | resultLen int32, result   (success)
//	callId int32 | success bool | error (length-prefixed)   (failure)
type Response struct {
	CallID  int32
	Success bool
	Result  []byte // Codec-encoded return value, only when Success
	Error   string // Fault text, only when !Success
}

// Call is a request after its arguments were decoded against the operation's
// parameter types.
type Call struct {
	ID        int32
	Operation string
	Args      []codec.Value
}

// Failure builds the response for a call that did not produce a result.
func Failure(callID int32, msg string) *Response {
	return &Response{CallID: callID, Error: msg}
}

// Success builds the response carrying an encoded result.
func Success(callID int32, result []byte) *Response {
	return &Response{CallID: callID, Success: true, Result: result}
}
