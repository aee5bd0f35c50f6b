// Package schema defines the component type system: primitive datatypes,
// composite component types parsed from a small declaration grammar, and
// the big-endian wire codec for field data.
package schema

import (
	"fmt"
	"strings"
)

// MaxNameLen bounds type and field names, in bytes.
const MaxNameLen = 32

// Kind identifies a primitive datatype.
type Kind uint8

const (
	KindVoid Kind = iota
	KindI32
	KindU32
	KindF32
	KindI64
	KindU64
	KindF64
	KindEID  // 64-bit entity id
	KindS32  // short bounded string, 4 bytes on the wire
	KindBlob // fixed-size byte blob
	KindComp // reference to another component type; never survives flattening
)

// Datatype is a field's declared type. Size is meaningful only for
// KindBlob; Comp only for KindComp.
type Datatype struct {
	Kind Kind
	Size int
	Comp string
}

var primitiveNames = map[string]Kind{
	"void": KindVoid,
	"i32":  KindI32,
	"u32":  KindU32,
	"f32":  KindF32,
	"i64":  KindI64,
	"u64":  KindU64,
	"f64":  KindF64,
	"id":   KindEID,
	"s32":  KindS32,
}

// ByteSize returns the packed width of a single value of this datatype.
func (d Datatype) ByteSize() int {
	switch d.Kind {
	case KindVoid:
		return 0
	case KindI32, KindU32, KindF32, KindS32:
		return 4
	case KindI64, KindU64, KindF64, KindEID:
		return 8
	case KindBlob:
		return d.Size
	default:
		panic(fmt.Sprintf("schema: no byte size for unflattened datatype %v", d))
	}
}

// String renders the datatype as it appears in a declaration.
func (d Datatype) String() string {
	switch d.Kind {
	case KindVoid:
		return "void"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindF32:
		return "f32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindEID:
		return "id"
	case KindS32:
		return "s32"
	case KindBlob:
		return fmt.Sprintf("b%d", d.Size)
	case KindComp:
		return d.Comp
	default:
		return fmt.Sprintf("Kind(%d)", d.Kind)
	}
}

// CompKind distinguishes the three component type shapes.
type CompKind uint8

const (
	Alias CompKind = iota
	Product
	Sum
)

// Field is a named member of a component type. After flattening, nested
// component references are expanded into dotted names ("pos.x") over
// primitive datatypes.
type Field struct {
	Name     string
	Datatype Datatype
}

// SelfField is the synthetic field name carried by alias components.
const SelfField = "self"

// ComponentType is a registered (or about to be registered) type. An
// Alias has exactly one field named SelfField. Registered component
// types are immutable.
type ComponentType struct {
	Name   string
	Kind   CompKind
	Fields []Field
}

// Field returns the field with the given name, if present.
func (ct *ComponentType) Field(name string) (Field, bool) {
	for _, f := range ct.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ByteSize returns the packed width of the whole component. A tile
// materializes every declared field, so products and sums share the same
// packed layout: the sum of the field widths in declared order.
func (ct *ComponentType) ByteSize() int {
	if ct.Kind == Alias {
		return ct.Fields[0].Datatype.ByteSize()
	}
	total := 0
	for _, f := range ct.Fields {
		total += f.Datatype.ByteSize()
	}
	return total
}

// Canonical renders the component back into declaration syntax, e.g.
// "Position: { x: f32, y: f32 };". Flattened types render with primitive
// field datatypes only, so the output is always self-contained.
func (ct *ComponentType) Canonical() string {
	var b strings.Builder
	b.WriteString(ct.Name)
	b.WriteString(": ")
	switch ct.Kind {
	case Alias:
		b.WriteString(ct.Fields[0].Datatype.String())
	case Product, Sum:
		if ct.Kind == Sum {
			b.WriteString("sum ")
		}
		b.WriteString("{ ")
		for i, f := range ct.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Datatype.String())
		}
		b.WriteString(" }")
	}
	b.WriteString(";")
	return b.String()
}
