package schema

import "fmt"

// Value is a single typed field value. Exactly one payload field is
// meaningful, selected by Kind. EID values use the U64 payload.
type Value struct {
	Kind Kind
	I32  int32
	U32  uint32
	F32  float32
	I64  int64
	U64  uint64
	F64  float64
	Str  string
	Blob []byte
}

func Void() Value         { return Value{Kind: KindVoid} }
func I32(v int32) Value   { return Value{Kind: KindI32, I32: v} }
func U32(v uint32) Value  { return Value{Kind: KindU32, U32: v} }
func F32(v float32) Value { return Value{Kind: KindF32, F32: v} }
func I64(v int64) Value   { return Value{Kind: KindI64, I64: v} }
func U64(v uint64) Value  { return Value{Kind: KindU64, U64: v} }
func F64(v float64) Value { return Value{Kind: KindF64, F64: v} }
func EID(id uint64) Value { return Value{Kind: KindEID, U64: id} }

// S32 builds a short string value. Strings longer than four bytes are
// truncated to the wire width.
func S32(s string) Value {
	if len(s) > 4 {
		s = s[:4]
	}
	return Value{Kind: KindS32, Str: s}
}

// Blob builds a fixed-width blob value, zero-padding or truncating the
// input to size bytes.
func Blob(b []byte, size int) Value {
	out := make([]byte, size)
	copy(out, b)
	return Value{Kind: KindBlob, Blob: out}
}

// Matches reports whether the value can populate a field of datatype d.
func (v Value) Matches(d Datatype) bool {
	if v.Kind != d.Kind {
		return false
	}
	if v.Kind == KindBlob {
		return len(v.Blob) == d.Size
	}
	return true
}

// ZeroValue returns the default value for a datatype.
func ZeroValue(d Datatype) Value {
	switch d.Kind {
	case KindBlob:
		return Value{Kind: KindBlob, Blob: make([]byte, d.Size)}
	case KindComp:
		panic(fmt.Sprintf("schema: no zero value for unflattened datatype %s", d))
	default:
		return Value{Kind: d.Kind}
	}
}
