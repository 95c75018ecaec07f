package bintable

import (
	"encoding/binary"
	"math"
)

// Kind is the shape of a decoded cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindComplex
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one decoded cell. Bytes and Array borrow from the row or heap
// they were decoded from and are only valid as long as that memory is.
type Value struct {
	Kind Kind
	// Null is set when the stored integer equals TNULL or a logical is 0.
	// Int/Uint still hold the decoded value.
	Null  bool
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Imag  float64
	Bytes []byte
	Array Array
}

// Str copies a string cell.
func (v Value) Str() string { return string(v.Bytes) }

// Array is a lazily decoded run of elements of one column.
type Array struct {
	col  *Column
	elem TypeCode
	n    int
	raw  []byte
}

func (a Array) Len() int { return a.n }

// Elem is the storage type of the elements.
func (a Array) Elem() TypeCode { return a.elem }

// Raw is the borrowed big-endian storage of the elements.
func (a Array) Raw() []byte { return a.raw }

// At decodes element i.
func (a Array) At(i int) Value {
	if a.elem == TypeBit {
		return Value{Kind: KindBool, Bool: a.raw[i/8]&(0x80>>(i%8)) != 0}
	}
	w := a.elem.ElemWidth()
	return a.col.scalar(a.elem, a.raw[i*w:(i+1)*w])
}

// Bools expands a logical or bit array. Null logicals decode as false.
func (a Array) Bools() []bool {
	out := make([]bool, a.n)
	for i := range out {
		out[i] = a.At(i).Bool
	}
	return out
}

// scalar decodes one element of type t from b, which holds exactly one
// element.
func (c *Column) scalar(t TypeCode, b []byte) Value {
	switch t {
	case TypeLogical:
		switch b[0] {
		case 'T':
			return Value{Kind: KindBool, Bool: true}
		case 0:
			return Value{Kind: KindBool, Null: true}
		default:
			return Value{Kind: KindBool}
		}
	case TypeUint8:
		return c.integer(int64(b[0]))
	case TypeInt16:
		return c.integer(int64(int16(binary.BigEndian.Uint16(b))))
	case TypeInt32:
		return c.integer(int64(int32(binary.BigEndian.Uint32(b))))
	case TypeInt64:
		return c.integer(int64(binary.BigEndian.Uint64(b)))
	case TypeFloat32:
		return Value{Kind: KindFloat, Float: c.rescale(float64(math.Float32frombits(binary.BigEndian.Uint32(b))))}
	case TypeFloat64:
		return Value{Kind: KindFloat, Float: c.rescale(math.Float64frombits(binary.BigEndian.Uint64(b)))}
	case TypeComplex64:
		re := math.Float32frombits(binary.BigEndian.Uint32(b))
		im := math.Float32frombits(binary.BigEndian.Uint32(b[4:]))
		return Value{Kind: KindComplex, Float: c.rescale(float64(re)), Imag: c.rescale(float64(im))}
	case TypeComplex128:
		re := math.Float64frombits(binary.BigEndian.Uint64(b))
		im := math.Float64frombits(binary.BigEndian.Uint64(b[8:]))
		return Value{Kind: KindComplex, Float: c.rescale(re), Imag: c.rescale(im)}
	case TypeChar:
		return stringValue(b)
	}
	return Value{}
}

func (c *Column) rescale(f float64) float64 {
	if c.interp != interpScaled {
		return f
	}
	return f*c.Scale + c.Zero
}

func (c *Column) integer(raw int64) Value {
	v := Value{Kind: KindInt, Int: raw, Null: c.HasNull && raw == c.Null}
	switch c.interp {
	case interpOffset:
		switch c.ValueType() {
		case TypeUint8:
			v.Int = raw - 128
		case TypeInt16:
			v.Kind, v.Int, v.Uint = KindUint, 0, uint64(uint16(raw)^0x8000)
		case TypeInt32:
			v.Kind, v.Int, v.Uint = KindUint, 0, uint64(uint32(raw)^0x80000000)
		case TypeInt64:
			v.Kind, v.Int, v.Uint = KindUint, 0, uint64(raw)^(1<<63)
		}
	case interpScaled:
		v.Kind, v.Int, v.Float = KindFloat, 0, float64(raw)*c.Scale+c.Zero
	}
	return v
}

// stringValue trims a character field: it ends at the first NUL and
// trailing blanks are dropped.
func stringValue(b []byte) Value {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return Value{Kind: KindString, Bytes: b[:end]}
}
