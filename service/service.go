// Package service binds a statically described set of operations to the two
// ends of a channel: a Table maps operation names to invokers on the child,
// and a Stub forwards typed calls from the parent.
//
// Both are built from the same Description, so parameter and return types are
// always identical on each side of the channel.
package service

import (
	"context"
	"errors"
	"fmt"

	"pipecall/codec"
)

var (
	ErrInvalidDescription = errors.New("service: invalid description")
	ErrUnknownOperation   = errors.New("service: unknown operation")
)

// Operation is one callable entry: its name on the wire, the static type of
// each parameter in order, and the return type.
type Operation struct {
	Name    string
	Params  []*codec.Type
	Returns *codec.Type
}

// Description is the ordered operation list of a service. It is declared once
// as a package-level value and never modified.
type Description struct {
	Name       string
	Operations []Operation
}

func (d Description) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty service name", ErrInvalidDescription)
	}
	seen := make(map[string]bool, len(d.Operations))
	for i, op := range d.Operations {
		if op.Name == "" {
			return fmt.Errorf("%w: %s operation %d has no name", ErrInvalidDescription, d.Name, i)
		}
		if seen[op.Name] {
			return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidDescription, d.Name, op.Name)
		}
		seen[op.Name] = true
		if op.Returns == nil {
			return fmt.Errorf("%w: %s.%s has no return type", ErrInvalidDescription, d.Name, op.Name)
		}
		for j, p := range op.Params {
			if p == nil {
				return fmt.Errorf("%w: %s.%s parameter %d has no type", ErrInvalidDescription, d.Name, op.Name, j)
			}
		}
	}
	return nil
}

// Invoker runs one operation with already decoded arguments.
type Invoker func(ctx context.Context, args []codec.Value) (codec.Value, error)

type entry struct {
	op     Operation
	invoke Invoker
}

// Table is the child-side dispatch table.
type Table struct {
	name    string
	entries map[string]entry
}

// NewTable pairs every operation of desc with its invoker. Each operation
// needs exactly one invoker, and an invoker without an operation is an error.
func NewTable(desc Description, invokers map[string]Invoker) (*Table, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	t := &Table{name: desc.Name, entries: make(map[string]entry, len(desc.Operations))}
	for _, op := range desc.Operations {
		inv, ok := invokers[op.Name]
		if !ok || inv == nil {
			return nil, fmt.Errorf("%w: %s.%s has no invoker", ErrInvalidDescription, desc.Name, op.Name)
		}
		t.entries[op.Name] = entry{op: op, invoke: inv}
	}
	for name := range invokers {
		if _, ok := t.entries[name]; !ok {
			return nil, fmt.Errorf("%w: invoker %q matches no operation of %s", ErrInvalidDescription, name, desc.Name)
		}
	}
	return t, nil
}

func (t *Table) Name() string { return t.name }

// Lookup returns the operation and its invoker.
func (t *Table) Lookup(name string) (Operation, Invoker, bool) {
	e, ok := t.entries[name]
	return e.op, e.invoke, ok
}

// Caller is what a Stub forwards to: a client.Dispatcher or a client.Pool.
type Caller interface {
	Invoke(op string, args []codec.Value, argTypes []*codec.Type, ret *codec.Type) (codec.Value, error)
}

// Stub is the parent-side forwarder. The operation map is built once so a
// call costs one map lookup before it reaches the caller.
type Stub struct {
	name   string
	caller Caller
	ops    map[string]Operation
}

func NewStub(desc Description, caller Caller) (*Stub, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	ops := make(map[string]Operation, len(desc.Operations))
	for _, op := range desc.Operations {
		ops[op.Name] = op
	}
	return &Stub{name: desc.Name, caller: caller, ops: ops}, nil
}

// Call invokes the named operation with its declared static types. Unknown
// names fail locally without touching the channel.
func (s *Stub) Call(name string, args ...codec.Value) (codec.Value, error) {
	op, ok := s.ops[name]
	if !ok {
		return codec.Null(), fmt.Errorf("%w: %s.%s", ErrUnknownOperation, s.name, name)
	}
	return s.caller.Invoke(op.Name, args, op.Params, op.Returns)
}
