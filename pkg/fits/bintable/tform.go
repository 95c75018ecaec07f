package bintable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samcharles93/fitstable/pkg/fits"
)

// TypeCode is the closed set of binary-table storage types (the letter of a
// TFORMn value).
type TypeCode uint8

const (
	TypeInvalid    TypeCode = iota
	TypeLogical             // L
	TypeBit                 // X
	TypeUint8               // B
	TypeInt16               // I
	TypeInt32               // J
	TypeInt64               // K
	TypeChar                // A
	TypeFloat32             // E
	TypeFloat64             // D
	TypeComplex64           // C
	TypeComplex128          // M
	TypeHeap32              // P
	TypeHeap64              // Q
)

type typeInfo struct {
	letter byte
	// width is the byte size of one element; bit arrays are sized
	// separately.
	width int
	name  string
}

var typeTable = [...]typeInfo{
	TypeInvalid:    {0, 0, "invalid"},
	TypeLogical:    {'L', 1, "logical"},
	TypeBit:        {'X', 0, "bit"},
	TypeUint8:      {'B', 1, "u8"},
	TypeInt16:      {'I', 2, "i16"},
	TypeInt32:      {'J', 4, "i32"},
	TypeInt64:      {'K', 8, "i64"},
	TypeChar:       {'A', 1, "char"},
	TypeFloat32:    {'E', 4, "f32"},
	TypeFloat64:    {'D', 8, "f64"},
	TypeComplex64:  {'C', 8, "c64"},
	TypeComplex128: {'M', 16, "c128"},
	TypeHeap32:     {'P', 8, "heap32"},
	TypeHeap64:     {'Q', 16, "heap64"},
}

func typeFromLetter(c byte) TypeCode {
	for t := TypeLogical; int(t) < len(typeTable); t++ {
		if typeTable[t].letter == c {
			return t
		}
	}
	return TypeInvalid
}

func (t TypeCode) Letter() byte {
	if int(t) >= len(typeTable) {
		return '?'
	}
	return typeTable[t].letter
}

// ElemWidth is the byte width of one element of type t.
func (t TypeCode) ElemWidth() int {
	if int(t) >= len(typeTable) {
		return 0
	}
	return typeTable[t].width
}

func (t TypeCode) String() string {
	if int(t) >= len(typeTable) {
		return fmt.Sprintf("unknown(%d)", t)
	}
	return typeTable[t].name
}

func (t TypeCode) IsHeap() bool { return t == TypeHeap32 || t == TypeHeap64 }

func (t TypeCode) IsInteger() bool {
	switch t {
	case TypeUint8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// byteWidth is the number of bytes n elements of t occupy.
func (t TypeCode) byteWidth(n int) int {
	if t == TypeBit {
		return (n + 7) / 8
	}
	return n * t.ElemWidth()
}

// TForm is a parsed TFORMn value: rT or rPt(max) / rQt(max).
type TForm struct {
	Repeat int
	Type   TypeCode
	// Elem and MaxLen describe the heap payload of P and Q columns.
	Elem   TypeCode
	MaxLen int
}

// Width is the number of bytes the field occupies in every row.
func (f TForm) Width() int {
	if f.Type.IsHeap() {
		return f.Repeat * f.Type.ElemWidth()
	}
	return f.Type.byteWidth(f.Repeat)
}

func (f TForm) String() string {
	var sb strings.Builder
	if f.Repeat != 1 {
		sb.WriteString(strconv.Itoa(f.Repeat))
	}
	sb.WriteByte(f.Type.Letter())
	if f.Type.IsHeap() {
		sb.WriteByte(f.Elem.Letter())
		if f.MaxLen > 0 {
			fmt.Fprintf(&sb, "(%d)", f.MaxLen)
		}
	}
	return sb.String()
}

// ParseTForm parses a TFORMn value. Unknown type letters yield
// fits.ErrUnsupportedType, syntax errors fits.ErrMalformedHeader.
func ParseTForm(s string) (TForm, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	repeat := 1
	if i > 0 {
		r, err := strconv.Atoi(s[:i])
		if err != nil || r < 0 {
			return TForm{}, fmt.Errorf("%w: bad repeat count in TFORM %q", fits.ErrMalformedHeader, s)
		}
		repeat = r
	}
	if i == len(s) {
		return TForm{}, fmt.Errorf("%w: missing type letter in TFORM %q", fits.ErrMalformedHeader, s)
	}
	t := typeFromLetter(s[i])
	if t == TypeInvalid {
		return TForm{}, fmt.Errorf("%w: TFORM %q", fits.ErrUnsupportedType, s)
	}
	f := TForm{Repeat: repeat, Type: t}
	if !t.IsHeap() {
		// Anything after the letter is an extra, implementation-defined
		// suffix (e.g. the 'A' sub-string width) and does not affect layout.
		return f, nil
	}

	if repeat > 1 {
		return TForm{}, fmt.Errorf("%w: repeat count of %c column must be 0 or 1 in TFORM %q",
			fits.ErrMalformedHeader, t.Letter(), s)
	}
	rest := s[i+1:]
	if rest == "" {
		return TForm{}, fmt.Errorf("%w: missing element type in TFORM %q", fits.ErrMalformedHeader, s)
	}
	f.Elem = typeFromLetter(rest[0])
	switch f.Elem {
	case TypeInvalid, TypeHeap32, TypeHeap64:
		return TForm{}, fmt.Errorf("%w: heap element type in TFORM %q", fits.ErrUnsupportedType, s)
	}
	rest = rest[1:]
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return TForm{}, fmt.Errorf("%w: unterminated max length in TFORM %q", fits.ErrMalformedHeader, s)
		}
		m, err := strconv.Atoi(strings.TrimSpace(rest[1:end]))
		if err != nil || m < 0 {
			return TForm{}, fmt.Errorf("%w: bad max length in TFORM %q", fits.ErrMalformedHeader, s)
		}
		f.MaxLen = m
	}
	return f, nil
}
