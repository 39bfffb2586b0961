// Package codec implements the self-describing binary value encoding carried
// inside call frames.
//
// Every encoded value starts with a one-byte tag. The tag says which category
// of value follows; the exact primitive width and the record field types are
// never written, they come from the static *Type the receiver decodes against.
//
//	Null       ┌─────┐
//	           │ 0x00│
//	           └─────┘
//	Record     ┌─────┬──────────────┬───────────────────────────┐
//	           │ 0x01│ fields int32 │ field values, schema order │
//	           └─────┴──────────────┴───────────────────────────┘
//	String     ┌─────┬──────────────┬───────────────────────────┐
//	           │ 0x02│ len int32    │ UTF-8 bytes (len=-1: null) │
//	           └─────┴──────────────┴───────────────────────────┘
//	Array      ┌─────┬──────────────┬───────────────────────────┐
//	           │ 0x03│ len int32    │ elements (len=-1: null)    │
//	           └─────┴──────────────┴───────────────────────────┘
//	Primitive  ┌─────┬──────────────────────────────┐
//	           │ 0x04│ fixed-width value, LE order  │
//	           └─────┴──────────────────────────────┘
//
// All multi-byte integers are little-endian. Nesting depth is not bounded.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Tag is the first byte of every encoded value.
type Tag byte

const (
	TagNull      Tag = 0
	TagRecord    Tag = 1
	TagString    Tag = 2
	TagArray     Tag = 3
	TagPrimitive Tag = 4
)

// MaxStringLength is the largest UTF-8 byte count a string may carry.
const MaxStringLength = 64 * 1024

// nullLength marks a null string or array in the length field.
const nullLength = -1

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagRecord:
		return "record"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	case TagPrimitive:
		return "primitive"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// Encode serializes v against its static type t.
func Encode(v Value, t *Type) ([]byte, error) {
	e := encoder{buf: make([]byte, 0, 64)}
	if err := e.value(v, t); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Decode reads one value of static type t from data. The whole slice must be
// consumed.
func Decode(data []byte, t *Type) (Value, error) {
	d := decoder{data: data}
	v, err := d.value(t)
	if err != nil {
		return Value{}, err
	}
	if d.off != len(d.data) {
		return Value{}, fmt.Errorf("%w: %d bytes after %s", ErrTrailingBytes, len(d.data)-d.off, t)
	}
	return v, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) value(v Value, t *Type) error {
	if t == nil {
		return fmt.Errorf("%w: no static type", ErrTypeMismatch)
	}

	if v.tag == TagNull {
		if t.category == CategoryPrimitive {
			return fmt.Errorf("%w: null value for %s", ErrTypeMismatch, t)
		}
		e.buf = append(e.buf, byte(TagNull))
		return nil
	}

	switch t.category {
	case CategoryPrimitive:
		if v.tag != TagPrimitive {
			return mismatch(t, v.tag)
		}
		if t.kind == KindDecimal {
			return fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, t.kind)
		}
		if v.kind != t.kind {
			return fmt.Errorf("%w: %s value for %s", ErrTypeMismatch, v.kind, t)
		}
		e.buf = append(e.buf, byte(TagPrimitive))
		e.primitive(t.kind, v.bits)

	case CategoryString:
		if v.tag != TagString {
			return mismatch(t, v.tag)
		}
		if len(v.str) > MaxStringLength {
			return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(v.str))
		}
		e.buf = append(e.buf, byte(TagString))
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(v.str)))
		e.buf = append(e.buf, v.str...)

	case CategoryArray:
		if v.tag != TagArray {
			return mismatch(t, v.tag)
		}
		e.buf = append(e.buf, byte(TagArray))
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(v.items)))
		for i, item := range v.items {
			if err := e.value(item, t.elem); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}

	case CategoryRecord:
		if v.tag != TagRecord {
			return mismatch(t, v.tag)
		}
		if len(v.items) != t.schema.NumField() {
			return fmt.Errorf("%w: %s has %d fields, value has %d",
				ErrFieldCountMismatch, t.schema.Name(), t.schema.NumField(), len(v.items))
		}
		e.buf = append(e.buf, byte(TagRecord))
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(v.items)))
		for i, f := range t.schema.fields {
			if err := e.value(v.items[i], f.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", t.schema.Name(), f.Name, err)
			}
		}

	default:
		return fmt.Errorf("%w: invalid static type", ErrTypeMismatch)
	}
	return nil
}

func (e *encoder) primitive(k Kind, bits uint64) {
	switch k.Size() {
	case 1:
		e.buf = append(e.buf, byte(bits))
	case 2:
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(bits))
	case 4:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(bits))
	case 8:
		e.buf = binary.LittleEndian.AppendUint64(e.buf, bits)
	}
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) value(t *Type) (Value, error) {
	if t == nil {
		return Value{}, fmt.Errorf("%w: no static type", ErrTypeMismatch)
	}

	b, err := d.byte()
	if err != nil {
		return Value{}, err
	}
	tag := Tag(b)
	if tag > TagPrimitive {
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownTag, b)
	}

	if tag == TagNull {
		if t.category == CategoryPrimitive {
			return Value{}, fmt.Errorf("%w: null for %s", ErrTypeMismatch, t)
		}
		return Null(), nil
	}

	switch t.category {
	case CategoryPrimitive:
		if tag != TagPrimitive {
			return Value{}, mismatch(t, tag)
		}
		if t.kind == KindDecimal {
			return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, t.kind)
		}
		raw, err := d.take(t.kind.Size())
		if err != nil {
			return Value{}, err
		}
		var bits uint64
		switch len(raw) {
		case 1:
			bits = uint64(raw[0])
		case 2:
			bits = uint64(binary.LittleEndian.Uint16(raw))
		case 4:
			bits = uint64(binary.LittleEndian.Uint32(raw))
		case 8:
			bits = binary.LittleEndian.Uint64(raw)
		}
		if t.kind == KindBool && bits != 0 {
			bits = 1
		}
		return Value{tag: TagPrimitive, kind: t.kind, bits: bits}, nil

	case CategoryString:
		if tag != TagString {
			return Value{}, mismatch(t, tag)
		}
		n, err := d.length()
		if err != nil || n == nullLength {
			return Value{}, err
		}
		if n > MaxStringLength {
			return Value{}, fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
		}
		raw, err := d.take(n)
		if err != nil {
			return Value{}, err
		}
		return String(string(raw)), nil

	case CategoryArray:
		if tag != TagArray {
			return Value{}, mismatch(t, tag)
		}
		n, err := d.length()
		if err != nil || n == nullLength {
			return Value{}, err
		}
		// every element occupies at least its tag byte
		if n > len(d.data)-d.off {
			return Value{}, fmt.Errorf("%w: array of %d elements in %d bytes", ErrTruncated, n, len(d.data)-d.off)
		}
		items := make([]Value, n)
		for i := range items {
			if items[i], err = d.value(t.elem); err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return Value{tag: TagArray, items: items}, nil

	case CategoryRecord:
		if tag != TagRecord {
			return Value{}, mismatch(t, tag)
		}
		raw, err := d.take(4)
		if err != nil {
			return Value{}, err
		}
		count := int32(binary.LittleEndian.Uint32(raw))
		if int(count) != t.schema.NumField() {
			return Value{}, fmt.Errorf("%w: %s expects %d fields, got %d",
				ErrFieldCountMismatch, t.schema.Name(), t.schema.NumField(), count)
		}
		items := make([]Value, count)
		for i, f := range t.schema.fields {
			if items[i], err = d.value(f.Type); err != nil {
				return Value{}, fmt.Errorf("%s.%s: %w", t.schema.Name(), f.Name, err)
			}
		}
		return Value{tag: TagRecord, items: items}, nil
	}

	return Value{}, fmt.Errorf("%w: invalid static type", ErrTypeMismatch)
}

// length reads a string/array length; nullLength is passed through.
func (d *decoder) length() (int, error) {
	raw, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := int32(binary.LittleEndian.Uint32(raw))
	if n < nullLength {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return int(n), nil
}

func (d *decoder) byte() (byte, error) {
	raw, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n > len(d.data)-d.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, len(d.data)-d.off)
	}
	raw := d.data[d.off : d.off+n]
	d.off += n
	return raw, nil
}

func mismatch(t *Type, tag Tag) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, t, tag)
}
