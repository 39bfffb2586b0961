// Package demo is the demonstration service: a Delegate interface, its
// static description, the child-side binding and the parent-side client.
//
//	parent                                   child
//	Client ─► service.Stub ─► Dispatcher ══► Host ─► Bind(Impl)
package demo

import (
	"pipecall/codec"
	"pipecall/service"
)

const ServiceName = "Demo"

// Delegate is implemented by Impl inside the child and by Client in the
// parent. A Client returns *client.RemoteError when the child reports a
// failure.
type Delegate interface {
	Add(a, b int32) (int32, error)
	Concatenate(parts []string) (string, error)
	ProcessObject(id int32, name string) (TestObject, error)

	// ProcessNullArray tells a null array (nil) from an empty one. []string
	// cannot hold a null element, so a null element sent by another producer
	// reaches the Delegate as "". Code that needs null elements works on
	// codec values through service.Stub and service.Table directly.
	ProcessNullArray(arr []string) ([]string, error)
	ProcessNullString(s *string) (*string, error)
	ProcessObjectArray(objs []TestObject) ([]TestObject, error)
	ProcessStruct(data TestStruct) (TestStruct, error)

	ProcessBoolean(v bool) (bool, error)
	ProcessByte(v uint8) (uint8, error)
	ProcessSByte(v int8) (int8, error)
	ProcessChar(v uint16) (uint16, error)
	ProcessInt16(v int16) (int16, error)
	ProcessUInt16(v uint16) (uint16, error)
	ProcessInt32(v int32) (int32, error)
	ProcessUInt32(v uint32) (uint32, error)
	ProcessInt64(v int64) (int64, error)
	ProcessUInt64(v uint64) (uint64, error)
	ProcessSingle(v float32) (float32, error)
	ProcessDouble(v float64) (float64, error)
	// ProcessDecimal is declared against the decimal kind, which has no wire
	// encoding: every call fails with codec.ErrUnsupportedPrimitive.
	ProcessDecimal(v float64) (float64, error)
	ProcessAllPrimitives(data AllPrimitives) (AllPrimitives, error)
}

func op(name string, ret *codec.Type, params ...*codec.Type) service.Operation {
	return service.Operation{Name: name, Params: params, Returns: ret}
}

func unary(name string, t *codec.Type) service.Operation {
	return op(name, t, t)
}

// Description lists the operations of Delegate in declaration order.
var Description = service.Description{
	Name: ServiceName,
	Operations: []service.Operation{
		op("Add", codec.TypeInt32, codec.TypeInt32, codec.TypeInt32),
		op("Concatenate", codec.TypeString, TypeStringArray),
		op("ProcessObject", TypeTestObject, codec.TypeInt32, codec.TypeString),

		unary("ProcessNullArray", TypeStringArray),
		unary("ProcessNullString", codec.TypeString),
		unary("ProcessObjectArray", TypeTestObjectArray),
		unary("ProcessStruct", TypeTestStruct),

		unary("ProcessBoolean", codec.TypeBool),
		unary("ProcessByte", codec.TypeUint8),
		unary("ProcessSByte", codec.TypeInt8),
		unary("ProcessChar", codec.TypeChar),
		unary("ProcessInt16", codec.TypeInt16),
		unary("ProcessUInt16", codec.TypeUint16),
		unary("ProcessInt32", codec.TypeInt32),
		unary("ProcessUInt32", codec.TypeUint32),
		unary("ProcessInt64", codec.TypeInt64),
		unary("ProcessUInt64", codec.TypeUint64),
		unary("ProcessSingle", codec.TypeFloat32),
		unary("ProcessDouble", codec.TypeFloat64),
		unary("ProcessDecimal", codec.TypeDecimal),
		unary("ProcessAllPrimitives", TypeAllPrimitives),
	},
}
