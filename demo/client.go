package demo

import (
	"pipecall/codec"
	"pipecall/service"
)

// Client is the parent-side Delegate. Every method is one blocking call
// through the caller it was built with.
type Client struct {
	stub *service.Stub
}

var _ Delegate = (*Client)(nil)

// NewClient wraps a client.Dispatcher or client.Pool.
func NewClient(caller service.Caller) (*Client, error) {
	stub, err := service.NewStub(Description, caller)
	if err != nil {
		return nil, err
	}
	return &Client{stub: stub}, nil
}

func call[T any](c *Client, op string, from func(codec.Value) T, args ...codec.Value) (T, error) {
	v, err := c.stub.Call(op, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return from(v), nil
}

func (c *Client) Add(a, b int32) (int32, error) {
	return call(c, "Add", codec.Value.Int32, codec.Int32(a), codec.Int32(b))
}

func (c *Client) Concatenate(parts []string) (string, error) {
	return call(c, "Concatenate", codec.Value.Str, codec.Strings(parts))
}

func (c *Client) ProcessObject(id int32, name string) (TestObject, error) {
	return call(c, "ProcessObject", testObjectOf, codec.Int32(id), codec.String(name))
}

func (c *Client) ProcessNullArray(arr []string) ([]string, error) {
	return call(c, "ProcessNullArray", codec.Value.StringSlice, codec.Strings(arr))
}

func (c *Client) ProcessNullString(s *string) (*string, error) {
	return call(c, "ProcessNullString", codec.Value.StrPtr, codec.StringPtr(s))
}

func (c *Client) ProcessObjectArray(objs []TestObject) ([]TestObject, error) {
	return call(c, "ProcessObjectArray", testObjectsOf, testObjectsValue(objs))
}

func (c *Client) ProcessStruct(data TestStruct) (TestStruct, error) {
	return call(c, "ProcessStruct", testStructOf, data.value())
}

func (c *Client) ProcessBoolean(v bool) (bool, error) {
	return call(c, "ProcessBoolean", codec.Value.Bool, codec.Bool(v))
}

func (c *Client) ProcessByte(v uint8) (uint8, error) {
	return call(c, "ProcessByte", codec.Value.Uint8, codec.Uint8(v))
}

func (c *Client) ProcessSByte(v int8) (int8, error) {
	return call(c, "ProcessSByte", codec.Value.Int8, codec.Int8(v))
}

func (c *Client) ProcessChar(v uint16) (uint16, error) {
	return call(c, "ProcessChar", codec.Value.Char, codec.Char(v))
}

func (c *Client) ProcessInt16(v int16) (int16, error) {
	return call(c, "ProcessInt16", codec.Value.Int16, codec.Int16(v))
}

func (c *Client) ProcessUInt16(v uint16) (uint16, error) {
	return call(c, "ProcessUInt16", codec.Value.Uint16, codec.Uint16(v))
}

func (c *Client) ProcessInt32(v int32) (int32, error) {
	return call(c, "ProcessInt32", codec.Value.Int32, codec.Int32(v))
}

func (c *Client) ProcessUInt32(v uint32) (uint32, error) {
	return call(c, "ProcessUInt32", codec.Value.Uint32, codec.Uint32(v))
}

func (c *Client) ProcessInt64(v int64) (int64, error) {
	return call(c, "ProcessInt64", codec.Value.Int64, codec.Int64(v))
}

func (c *Client) ProcessUInt64(v uint64) (uint64, error) {
	return call(c, "ProcessUInt64", codec.Value.Uint64, codec.Uint64(v))
}

func (c *Client) ProcessSingle(v float32) (float32, error) {
	return call(c, "ProcessSingle", codec.Value.Float32, codec.Float32(v))
}

func (c *Client) ProcessDouble(v float64) (float64, error) {
	return call(c, "ProcessDouble", codec.Value.Float64, codec.Float64(v))
}

func (c *Client) ProcessDecimal(v float64) (float64, error) {
	return call(c, "ProcessDecimal", codec.Value.Float64, codec.Float64(v))
}

func (c *Client) ProcessAllPrimitives(data AllPrimitives) (AllPrimitives, error) {
	return call(c, "ProcessAllPrimitives", allPrimitivesOf, data.value())
}
