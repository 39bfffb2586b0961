package codec

import (
	"fmt"
	"math"
	"strings"
)

// Value is the tagged union carried on the wire. The zero Value is Null.
//
// Primitive values keep their raw bits, so floats round-trip bit-exact
// (including -0.0 and NaN payloads).
type Value struct {
	tag   Tag
	kind  Kind
	bits  uint64
	str   string
	items []Value // array elements or record fields
}

func Null() Value { return Value{} }

func Bool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return prim(KindBool, bits)
}

func Int8(v int8) Value       { return prim(KindInt8, uint64(uint8(v))) }
func Uint8(v uint8) Value     { return prim(KindUint8, uint64(v)) }
func Int16(v int16) Value     { return prim(KindInt16, uint64(uint16(v))) }
func Uint16(v uint16) Value   { return prim(KindUint16, uint64(v)) }
func Char(v uint16) Value     { return prim(KindChar, uint64(v)) }
func Int32(v int32) Value     { return prim(KindInt32, uint64(uint32(v))) }
func Uint32(v uint32) Value   { return prim(KindUint32, uint64(v)) }
func Int64(v int64) Value     { return prim(KindInt64, uint64(v)) }
func Uint64(v uint64) Value   { return prim(KindUint64, v) }
func Float32(v float32) Value { return prim(KindFloat32, uint64(math.Float32bits(v))) }
func Float64(v float64) Value { return prim(KindFloat64, math.Float64bits(v)) }

func prim(k Kind, bits uint64) Value {
	return Value{tag: TagPrimitive, kind: k, bits: bits}
}

// String returns a non-null string value; "" is the empty string, not null.
func String(s string) Value { return Value{tag: TagString, str: s} }

// StringPtr maps nil to Null.
func StringPtr(s *string) Value {
	if s == nil {
		return Null()
	}
	return String(*s)
}

// Array returns a non-null array; Array() is the empty array.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{tag: TagArray, items: items}
}

// Strings maps a nil slice to Null and an empty slice to the empty array.
func Strings(ss []string) Value {
	if ss == nil {
		return Null()
	}
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Array(items...)
}

// Record returns a record value with fields in schema order.
func Record(fields ...Value) Value {
	if fields == nil {
		fields = []Value{}
	}
	return Value{tag: TagRecord, items: fields}
}

func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNull() bool { return v.tag == TagNull }

// Kind is the primitive kind, KindInvalid for non-primitives.
func (v Value) Kind() Kind { return v.kind }

// Accessors return the zero value when v is not a primitive of that kind.

func (v Value) Bool() bool       { return v.is(KindBool) && v.bits != 0 }
func (v Value) Int8() int8       { return int8(v.raw(KindInt8)) }
func (v Value) Uint8() uint8     { return uint8(v.raw(KindUint8)) }
func (v Value) Int16() int16     { return int16(v.raw(KindInt16)) }
func (v Value) Uint16() uint16   { return uint16(v.raw(KindUint16)) }
func (v Value) Char() uint16     { return uint16(v.raw(KindChar)) }
func (v Value) Int32() int32     { return int32(v.raw(KindInt32)) }
func (v Value) Uint32() uint32   { return uint32(v.raw(KindUint32)) }
func (v Value) Int64() int64     { return int64(v.raw(KindInt64)) }
func (v Value) Uint64() uint64   { return v.raw(KindUint64) }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.raw(KindFloat32))) }
func (v Value) Float64() float64 { return math.Float64frombits(v.raw(KindFloat64)) }

func (v Value) is(k Kind) bool { return v.tag == TagPrimitive && v.kind == k }

func (v Value) raw(k Kind) uint64 {
	if !v.is(k) {
		return 0
	}
	return v.bits
}

// Str returns the string payload; "" for null or non-strings.
func (v Value) Str() string { return v.str }

// StrPtr returns nil for a null value.
func (v Value) StrPtr() *string {
	if v.tag != TagString {
		return nil
	}
	s := v.str
	return &s
}

// Items returns the elements of an array or the fields of a record.
func (v Value) Items() []Value { return v.items }

// Len is the element or field count.
func (v Value) Len() int { return len(v.items) }

// Index returns element or field i.
func (v Value) Index(i int) Value { return v.items[i] }

// StringSlice is the inverse of Strings for arrays without null elements.
// A null element becomes ""; read Items to keep the distinction.
func (v Value) StringSlice() []string {
	if v.tag != TagArray {
		return nil
	}
	out := make([]string, len(v.items))
	for i, item := range v.items {
		out[i] = item.str
	}
	return out
}

// Equal reports bit-exact equality, recursively.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag || v.kind != o.kind || v.bits != o.bits || v.str != o.str {
		return false
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.tag {
	case TagNull:
		return "null"
	case TagString:
		return fmt.Sprintf("%q", v.str)
	case TagPrimitive:
		switch v.kind {
		case KindBool:
			return fmt.Sprint(v.Bool())
		case KindInt8, KindInt16, KindInt32, KindInt64:
			return fmt.Sprint(signExtend(v.kind, v.bits))
		case KindFloat32:
			return fmt.Sprint(v.Float32())
		case KindFloat64:
			return fmt.Sprint(v.Float64())
		case KindChar:
			return fmt.Sprintf("%q", rune(v.bits))
		default:
			return fmt.Sprint(v.bits)
		}
	case TagArray, TagRecord:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		if v.tag == TagArray {
			return "[" + strings.Join(parts, " ") + "]"
		}
		return "{" + strings.Join(parts, " ") + "}"
	}
	return "invalid"
}

func signExtend(k Kind, bits uint64) int64 {
	switch k {
	case KindInt8:
		return int64(int8(bits))
	case KindInt16:
		return int64(int16(bits))
	case KindInt32:
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}
