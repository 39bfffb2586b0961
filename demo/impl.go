package demo

import "strings"

// Impl is the implementation served by the child.
type Impl struct{}

var _ Delegate = Impl{}

func (Impl) Add(a, b int32) (int32, error) { return a + b, nil }

func (Impl) Concatenate(parts []string) (string, error) {
	return strings.Join(parts, " "), nil
}

func (Impl) ProcessObject(id int32, name string) (TestObject, error) {
	return TestObject{ID: id, Name: Ref("Processed: " + name)}, nil
}

func (Impl) ProcessNullArray(arr []string) ([]string, error) {
	switch {
	case arr == nil:
		return []string{"was null"}, nil
	case len(arr) == 0:
		return []string{"was empty"}, nil
	}
	return arr, nil
}

func (Impl) ProcessNullString(s *string) (*string, error) {
	switch {
	case s == nil:
		return Ref("was null"), nil
	case *s == "":
		return Ref("was empty"), nil
	}
	return s, nil
}

func (Impl) ProcessObjectArray(objs []TestObject) ([]TestObject, error) {
	if objs == nil {
		return nil, nil
	}
	out := make([]TestObject, len(objs))
	for i, o := range objs {
		name := "Array_"
		if o.Name != nil {
			name += *o.Name
		}
		out[i] = TestObject{ID: o.ID * 2, Name: &name}
	}
	return out, nil
}

func (Impl) ProcessStruct(data TestStruct) (TestStruct, error) {
	s := Ref("was null")
	if data.StringValue != nil {
		s = Ref("Processed_" + *data.StringValue)
	}
	return TestStruct{
		IntValue:    data.IntValue * 2,
		StringValue: s,
		FloatValue:  data.FloatValue + 0.5,
	}, nil
}

func (Impl) ProcessBoolean(v bool) (bool, error)       { return !v, nil }
func (Impl) ProcessByte(v uint8) (uint8, error)        { return v * 2, nil }
func (Impl) ProcessSByte(v int8) (int8, error)         { return v * 2, nil }
func (Impl) ProcessChar(v uint16) (uint16, error)      { return v + 1, nil }
func (Impl) ProcessInt16(v int16) (int16, error)       { return v * 2, nil }
func (Impl) ProcessUInt16(v uint16) (uint16, error)    { return v * 2, nil }
func (Impl) ProcessInt32(v int32) (int32, error)       { return v * 2, nil }
func (Impl) ProcessUInt32(v uint32) (uint32, error)    { return v * 2, nil }
func (Impl) ProcessInt64(v int64) (int64, error)       { return v * 2, nil }
func (Impl) ProcessUInt64(v uint64) (uint64, error)    { return v * 2, nil }
func (Impl) ProcessSingle(v float32) (float32, error)  { return v * 2, nil }
func (Impl) ProcessDouble(v float64) (float64, error)  { return v * 2, nil }
func (Impl) ProcessDecimal(v float64) (float64, error) { return v * 2, nil }

func (Impl) ProcessAllPrimitives(p AllPrimitives) (AllPrimitives, error) {
	return AllPrimitives{
		Bool:   !p.Bool,
		Byte:   p.Byte * 2,
		SByte:  p.SByte * 2,
		Char:   p.Char + 1,
		Short:  p.Short * 2,
		UShort: p.UShort * 2,
		Int:    p.Int * 2,
		UInt:   p.UInt * 2,
		Long:   p.Long * 2,
		ULong:  p.ULong * 2,
		Float:  p.Float * 2,
		Double: p.Double * 2,
	}, nil
}
