package fitstest

import (
	"encoding/binary"
	"math"
)

func U8(v uint8) []byte { return []byte{v} }

func I16(v int16) []byte { return binary.BigEndian.AppendUint16(nil, uint16(v)) }

func I32(v int32) []byte { return binary.BigEndian.AppendUint32(nil, uint32(v)) }

func I64(v int64) []byte { return binary.BigEndian.AppendUint64(nil, uint64(v)) }

func F32(v float32) []byte { return binary.BigEndian.AppendUint32(nil, math.Float32bits(v)) }

func F64(v float64) []byte { return binary.BigEndian.AppendUint64(nil, math.Float64bits(v)) }

// Logical encodes 'T', 'F' or 0 for nil.
func Logical(v *bool) []byte {
	switch {
	case v == nil:
		return []byte{0}
	case *v:
		return []byte{'T'}
	default:
		return []byte{'F'}
	}
}

// Str pads s with blanks to width bytes.
func Str(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

// P encodes a 32-bit heap descriptor.
func P(count, offset int32) []byte { return append(I32(count), I32(offset)...) }

// Q encodes a 64-bit heap descriptor.
func Q(count, offset int64) []byte { return append(I64(count), I64(offset)...) }

// Concat joins encoded fields, e.g. the elements of a heap payload.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
