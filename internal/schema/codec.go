package schema

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrBadFieldData = errors.New("schema: field data does not match component width")

// AppendValue packs v onto buf in big-endian byte order and returns the
// extended slice. The value's kind must already match the field datatype.
func AppendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindVoid:
		return buf
	case KindI32:
		return binary.BigEndian.AppendUint32(buf, uint32(v.I32))
	case KindU32:
		return binary.BigEndian.AppendUint32(buf, v.U32)
	case KindF32:
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(v.F32))
	case KindI64:
		return binary.BigEndian.AppendUint64(buf, uint64(v.I64))
	case KindU64, KindEID:
		return binary.BigEndian.AppendUint64(buf, v.U64)
	case KindF64:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(v.F64))
	case KindS32:
		var four [4]byte
		copy(four[:], v.Str)
		return append(buf, four[:]...)
	case KindBlob:
		return append(buf, v.Blob...)
	default:
		panic(fmt.Sprintf("schema: cannot encode value of kind %d", v.Kind))
	}
}

// DecodeValue unpacks one value of datatype d from the front of data and
// returns it with the remaining bytes.
func DecodeValue(d Datatype, data []byte) (Value, []byte, error) {
	n := d.ByteSize()
	if len(data) < n {
		return Value{}, nil, fmt.Errorf("%w: need %d bytes for %s, have %d", ErrBadFieldData, n, d, len(data))
	}
	raw, rest := data[:n], data[n:]
	switch d.Kind {
	case KindVoid:
		return Void(), rest, nil
	case KindI32:
		return I32(int32(binary.BigEndian.Uint32(raw))), rest, nil
	case KindU32:
		return U32(binary.BigEndian.Uint32(raw)), rest, nil
	case KindF32:
		return F32(math.Float32frombits(binary.BigEndian.Uint32(raw))), rest, nil
	case KindI64:
		return I64(int64(binary.BigEndian.Uint64(raw))), rest, nil
	case KindU64:
		return U64(binary.BigEndian.Uint64(raw)), rest, nil
	case KindEID:
		return EID(binary.BigEndian.Uint64(raw)), rest, nil
	case KindF64:
		return F64(math.Float64frombits(binary.BigEndian.Uint64(raw))), rest, nil
	case KindS32:
		return Value{Kind: KindS32, Str: strings.TrimRight(string(raw), "\x00")}, rest, nil
	case KindBlob:
		b := make([]byte, n)
		copy(b, raw)
		return Value{Kind: KindBlob, Blob: b}, rest, nil
	default:
		return Value{}, nil, fmt.Errorf("%w: cannot decode datatype %s", ErrBadFieldData, d)
	}
}

// EncodeFields packs the component's fields in declared order. Every
// field must be present in values with a matching datatype; callers are
// expected to have validated and defaulted the map beforehand.
func EncodeFields(ct *ComponentType, values map[string]Value) []byte {
	buf := make([]byte, 0, ct.ByteSize())
	for _, f := range ct.Fields {
		buf = AppendValue(buf, values[f.Name])
	}
	return buf
}

// DecodeFields unpacks field data written by EncodeFields. The payload
// length must match the component width exactly.
func DecodeFields(ct *ComponentType, data []byte) (map[string]Value, error) {
	if len(data) != ct.ByteSize() {
		return nil, fmt.Errorf("%w: component %q is %d bytes, payload is %d",
			ErrBadFieldData, ct.Name, ct.ByteSize(), len(data))
	}
	values := make(map[string]Value, len(ct.Fields))
	rest := data
	var err error
	for _, f := range ct.Fields {
		var v Value
		v, rest, err = DecodeValue(f.Datatype, rest)
		if err != nil {
			return nil, err
		}
		values[f.Name] = v
	}
	return values, nil
}
