package demo

import (
	"context"

	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/middleware"
	"pipecall/server"
	"pipecall/service"
	"pipecall/transport"
)

// Bind builds the child-side table that forwards each operation of
// Description to d.
func Bind(d Delegate) (*service.Table, error) {
	return service.NewTable(Description, map[string]service.Invoker{
		"Add": func(_ context.Context, args []codec.Value) (codec.Value, error) {
			r, err := d.Add(args[0].Int32(), args[1].Int32())
			return codec.Int32(r), err
		},
		"Concatenate": func(_ context.Context, args []codec.Value) (codec.Value, error) {
			r, err := d.Concatenate(args[0].StringSlice())
			return codec.String(r), err
		},
		"ProcessObject": func(_ context.Context, args []codec.Value) (codec.Value, error) {
			r, err := d.ProcessObject(args[0].Int32(), args[1].Str())
			return r.value(), err
		},

		"ProcessNullArray":   invoker(codec.Value.StringSlice, codec.Strings, d.ProcessNullArray),
		"ProcessNullString":  invoker(codec.Value.StrPtr, codec.StringPtr, d.ProcessNullString),
		"ProcessObjectArray": invoker(testObjectsOf, testObjectsValue, d.ProcessObjectArray),
		"ProcessStruct":      invoker(testStructOf, TestStruct.value, d.ProcessStruct),

		"ProcessBoolean":       invoker(codec.Value.Bool, codec.Bool, d.ProcessBoolean),
		"ProcessByte":          invoker(codec.Value.Uint8, codec.Uint8, d.ProcessByte),
		"ProcessSByte":         invoker(codec.Value.Int8, codec.Int8, d.ProcessSByte),
		"ProcessChar":          invoker(codec.Value.Char, codec.Char, d.ProcessChar),
		"ProcessInt16":         invoker(codec.Value.Int16, codec.Int16, d.ProcessInt16),
		"ProcessUInt16":        invoker(codec.Value.Uint16, codec.Uint16, d.ProcessUInt16),
		"ProcessInt32":         invoker(codec.Value.Int32, codec.Int32, d.ProcessInt32),
		"ProcessUInt32":        invoker(codec.Value.Uint32, codec.Uint32, d.ProcessUInt32),
		"ProcessInt64":         invoker(codec.Value.Int64, codec.Int64, d.ProcessInt64),
		"ProcessUInt64":        invoker(codec.Value.Uint64, codec.Uint64, d.ProcessUInt64),
		"ProcessSingle":        invoker(codec.Value.Float32, codec.Float32, d.ProcessSingle),
		"ProcessDouble":        invoker(codec.Value.Float64, codec.Float64, d.ProcessDouble),
		"ProcessDecimal":       invoker(codec.Value.Float64, codec.Float64, d.ProcessDecimal),
		"ProcessAllPrimitives": invoker(allPrimitivesOf, AllPrimitives.value, d.ProcessAllPrimitives),
	})
}

// invoker adapts a single-argument method.
func invoker[T any](from func(codec.Value) T, to func(T) codec.Value, f func(T) (T, error)) service.Invoker {
	return func(_ context.Context, args []codec.Value) (codec.Value, error) {
		out, err := f(from(args[0]))
		if err != nil {
			return codec.Null(), err
		}
		return to(out), nil
	}
}

// Serve binds d and runs the host loop on a channel that completed Accept.
func Serve(ctx context.Context, ch *transport.Channel, d Delegate, logger *zap.Logger, mws ...middleware.Middleware) error {
	table, err := Bind(d)
	if err != nil {
		return err
	}
	host := server.NewHost(table, logger)
	host.Use(mws...)
	return host.Serve(ctx, ch)
}
