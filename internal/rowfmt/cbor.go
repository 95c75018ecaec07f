package rowfmt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// CBOR writes an RFC 8742 CBOR sequence: the header is one array of column
// labels, each row one array of cell values. Encoding is Core Deterministic,
// so the same table always yields the same bytes.
type CBOR struct {
	em cbor.EncMode
}

func NewCBOR() (*CBOR, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &CBOR{em: em}, nil
}

func (f *CBOR) AppendHeader(dst []byte, d *bintable.Descriptor) ([]byte, error) {
	labels := make([]string, len(d.Columns))
	for i := range d.Columns {
		labels[i] = d.Columns[i].Label()
	}
	b, err := f.em.Marshal(labels)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func (f *CBOR) AppendRow(dst []byte, d *bintable.Descriptor, r *bintable.Row) ([]byte, error) {
	cells := make([]any, len(d.Columns))
	for i := range d.Columns {
		cells[i] = cborValue(&d.Columns[i], r.Values[i])
	}
	b, err := f.em.Marshal(cells)
	if err != nil {
		return nil, fmt.Errorf("cbor row: %w", err)
	}
	return append(dst, b...), nil
}

func cborValue(c *bintable.Column, v bintable.Value) any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case bintable.KindBool:
		return v.Bool
	case bintable.KindInt:
		return v.Int
	case bintable.KindUint:
		return v.Uint
	case bintable.KindFloat:
		if floatBits(c) == 32 {
			return float32(v.Float)
		}
		return v.Float
	case bintable.KindComplex:
		if floatBits(c) == 32 {
			return []float32{float32(v.Float), float32(v.Imag)}
		}
		return []float64{v.Float, v.Imag}
	case bintable.KindString:
		return string(v.Bytes)
	case bintable.KindArray:
		a := v.Array
		out := make([]any, a.Len())
		for i := range out {
			out[i] = cborValue(c, a.At(i))
		}
		return out
	}
	return nil
}
