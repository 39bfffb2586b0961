package demo

import "pipecall/codec"

// TestObject is a small record carried by value.
type TestObject struct {
	ID   int32
	Name *string // nil travels as null
}

// TestStruct mixes a primitive, a nullable string and a float.
type TestStruct struct {
	IntValue    int32
	StringValue *string
	FloatValue  float32
}

// AllPrimitives has one field of every primitive kind the codec supports.
type AllPrimitives struct {
	Bool   bool
	Byte   uint8
	SByte  int8
	Char   uint16 // UTF-16 code unit
	Short  int16
	UShort uint16
	Int    int32
	UInt   uint32
	Long   int64
	ULong  uint64
	Float  float32
	Double float64
}

var (
	TestObjectSchema = codec.NewSchema("TestObject",
		codec.Field{Name: "Id", Type: codec.TypeInt32},
		codec.Field{Name: "Name", Type: codec.TypeString},
	)

	TestStructSchema = codec.NewSchema("TestStruct",
		codec.Field{Name: "IntValue", Type: codec.TypeInt32},
		codec.Field{Name: "StringValue", Type: codec.TypeString},
		codec.Field{Name: "FloatValue", Type: codec.TypeFloat32},
	)

	AllPrimitivesSchema = codec.NewSchema("AllPrimitivesStruct",
		codec.Field{Name: "BoolValue", Type: codec.TypeBool},
		codec.Field{Name: "ByteValue", Type: codec.TypeUint8},
		codec.Field{Name: "SByteValue", Type: codec.TypeInt8},
		codec.Field{Name: "CharValue", Type: codec.TypeChar},
		codec.Field{Name: "ShortValue", Type: codec.TypeInt16},
		codec.Field{Name: "UShortValue", Type: codec.TypeUint16},
		codec.Field{Name: "IntValue", Type: codec.TypeInt32},
		codec.Field{Name: "UIntValue", Type: codec.TypeUint32},
		codec.Field{Name: "LongValue", Type: codec.TypeInt64},
		codec.Field{Name: "ULongValue", Type: codec.TypeUint64},
		codec.Field{Name: "FloatValue", Type: codec.TypeFloat32},
		codec.Field{Name: "DoubleValue", Type: codec.TypeFloat64},
	)

	TypeTestObject      = codec.RecordOf(TestObjectSchema)
	TypeTestObjectArray = codec.ArrayOf(TypeTestObject)
	TypeTestStruct      = codec.RecordOf(TestStructSchema)
	TypeAllPrimitives   = codec.RecordOf(AllPrimitivesSchema)
	TypeStringArray     = codec.ArrayOf(codec.TypeString)
)

// Ref returns a pointer to s, for the nullable string fields.
func Ref(s string) *string { return &s }

func (o TestObject) value() codec.Value {
	return codec.Record(codec.Int32(o.ID), codec.StringPtr(o.Name))
}

func testObjectOf(v codec.Value) TestObject {
	if v.IsNull() {
		return TestObject{}
	}
	return TestObject{ID: v.Index(0).Int32(), Name: v.Index(1).StrPtr()}
}

func testObjectsValue(objs []TestObject) codec.Value {
	if objs == nil {
		return codec.Null()
	}
	items := make([]codec.Value, len(objs))
	for i, o := range objs {
		items[i] = o.value()
	}
	return codec.Array(items...)
}

func testObjectsOf(v codec.Value) []TestObject {
	if v.IsNull() {
		return nil
	}
	objs := make([]TestObject, v.Len())
	for i := range objs {
		objs[i] = testObjectOf(v.Index(i))
	}
	return objs
}

func (s TestStruct) value() codec.Value {
	return codec.Record(codec.Int32(s.IntValue), codec.StringPtr(s.StringValue), codec.Float32(s.FloatValue))
}

func testStructOf(v codec.Value) TestStruct {
	if v.IsNull() {
		return TestStruct{}
	}
	return TestStruct{
		IntValue:    v.Index(0).Int32(),
		StringValue: v.Index(1).StrPtr(),
		FloatValue:  v.Index(2).Float32(),
	}
}

func (p AllPrimitives) value() codec.Value {
	return codec.Record(
		codec.Bool(p.Bool),
		codec.Uint8(p.Byte),
		codec.Int8(p.SByte),
		codec.Char(p.Char),
		codec.Int16(p.Short),
		codec.Uint16(p.UShort),
		codec.Int32(p.Int),
		codec.Uint32(p.UInt),
		codec.Int64(p.Long),
		codec.Uint64(p.ULong),
		codec.Float32(p.Float),
		codec.Float64(p.Double),
	)
}

func allPrimitivesOf(v codec.Value) AllPrimitives {
	if v.IsNull() {
		return AllPrimitives{}
	}
	return AllPrimitives{
		Bool:   v.Index(0).Bool(),
		Byte:   v.Index(1).Uint8(),
		SByte:  v.Index(2).Int8(),
		Char:   v.Index(3).Char(),
		Short:  v.Index(4).Int16(),
		UShort: v.Index(5).Uint16(),
		Int:    v.Index(6).Int32(),
		UInt:   v.Index(7).Uint32(),
		Long:   v.Index(8).Int64(),
		ULong:  v.Index(9).Uint64(),
		Float:  v.Index(10).Float32(),
		Double: v.Index(11).Float64(),
	}
}
