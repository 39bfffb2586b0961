package codec

import (
	"fmt"
	"strings"
)

// Kind is the concrete type of a primitive value. It is never written to the
// wire; both ends know it from the static type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindChar // UTF-16 code unit
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	// KindDecimal can be declared but never encoded or decoded; it fails with
	// ErrUnsupportedPrimitive instead of losing precision.
	KindDecimal
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt8:    "int8",
	KindUint8:   "uint8",
	KindInt16:   "int16",
	KindUint16:  "uint16",
	KindChar:    "char",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindDecimal: "decimal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size is the encoded width in bytes; 0 for kinds without a wire form.
func (k Kind) Size() int {
	switch k {
	case KindBool, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16, KindChar:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// Category groups static types by the tag they accept.
type Category uint8

const (
	CategoryPrimitive Category = iota + 1
	CategoryString
	CategoryArray
	CategoryRecord
)

// Type is the statically known type a value is encoded and decoded against.
// Types are immutable once built.
type Type struct {
	category Category
	kind     Kind
	elem     *Type
	schema   *Schema
}

var (
	TypeBool    = Primitive(KindBool)
	TypeInt8    = Primitive(KindInt8)
	TypeUint8   = Primitive(KindUint8)
	TypeInt16   = Primitive(KindInt16)
	TypeUint16  = Primitive(KindUint16)
	TypeChar    = Primitive(KindChar)
	TypeInt32   = Primitive(KindInt32)
	TypeUint32  = Primitive(KindUint32)
	TypeInt64   = Primitive(KindInt64)
	TypeUint64  = Primitive(KindUint64)
	TypeFloat32 = Primitive(KindFloat32)
	TypeFloat64 = Primitive(KindFloat64)
	TypeDecimal = Primitive(KindDecimal)

	TypeString = &Type{category: CategoryString}
)

// Primitive returns the static type for a primitive kind.
func Primitive(k Kind) *Type {
	if k == KindInvalid || k > KindDecimal {
		panic(fmt.Sprintf("codec: invalid primitive kind %d", k))
	}
	return &Type{category: CategoryPrimitive, kind: k}
}

// ArrayOf returns the static type of an array of elem.
func ArrayOf(elem *Type) *Type {
	if elem == nil {
		panic("codec: ArrayOf(nil)")
	}
	return &Type{category: CategoryArray, elem: elem}
}

// RecordOf returns the static type of records laid out by s.
func RecordOf(s *Schema) *Type {
	if s == nil {
		panic("codec: RecordOf(nil)")
	}
	return &Type{category: CategoryRecord, schema: s}
}

func (t *Type) Category() Category { return t.category }
func (t *Type) Kind() Kind         { return t.kind }
func (t *Type) Elem() *Type        { return t.elem }
func (t *Type) Schema() *Schema    { return t.schema }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.category {
	case CategoryPrimitive:
		return t.kind.String()
	case CategoryString:
		return "string"
	case CategoryArray:
		return "[]" + t.elem.String()
	case CategoryRecord:
		return t.schema.Name()
	default:
		return "invalid"
	}
}

// Field is one named, typed slot of a record schema.
type Field struct {
	Name string
	Type *Type
}

// Schema is the ordered field list of a record type. Both ends of a channel
// must declare identical schemas; field order is wire order.
type Schema struct {
	name   string
	fields []Field
}

// NewSchema declares a record layout. It panics on a malformed declaration,
// since schemas are package-level values built once at startup.
func NewSchema(name string, fields ...Field) *Schema {
	if name == "" {
		panic("codec: schema without name")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Type == nil {
			panic(fmt.Sprintf("codec: schema %s: incomplete field %q", name, f.Name))
		}
		if seen[f.Name] {
			panic(fmt.Sprintf("codec: schema %s: duplicate field %q", name, f.Name))
		}
		seen[f.Name] = true
	}
	return &Schema{name: name, fields: append([]Field(nil), fields...)}
}

func (s *Schema) Name() string      { return s.name }
func (s *Schema) NumField() int     { return len(s.fields) }
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Index returns the position of the named field, or -1.
func (s *Schema) Index(name string) int {
	for i, f := range s.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + " " + f.Type.String()
	}
	return s.name + "{" + strings.Join(parts, "; ") + "}"
}
