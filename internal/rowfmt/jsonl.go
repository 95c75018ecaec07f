package rowfmt

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// JSONLines writes one JSON object per row keyed by column label. Nulls,
// NaNs and infinities are null; arrays and complex values are JSON arrays.
type JSONLines struct {
	prec int
}

func NewJSONLines(opts Options) *JSONLines {
	return &JSONLines{prec: opts.Precision}
}

// AppendHeader is a no-op: every record carries its keys.
func (f *JSONLines) AppendHeader(dst []byte, _ *bintable.Descriptor) ([]byte, error) {
	return dst, nil
}

func (f *JSONLines) AppendRow(dst []byte, d *bintable.Descriptor, r *bintable.Row) ([]byte, error) {
	dst = append(dst, '{')
	for i := range d.Columns {
		c := &d.Columns[i]
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		if dst, err = appendJSONString(dst, c.Label()); err != nil {
			return nil, err
		}
		dst = append(dst, ':')
		if dst, err = f.appendValue(dst, c, r.Values[i]); err != nil {
			return nil, err
		}
	}
	return append(dst, '}', '\n'), nil
}

func (f *JSONLines) appendValue(dst []byte, c *bintable.Column, v bintable.Value) ([]byte, error) {
	if v.Null {
		return append(dst, "null"...), nil
	}
	switch v.Kind {
	case bintable.KindBool:
		return strconv.AppendBool(dst, v.Bool), nil
	case bintable.KindInt:
		return strconv.AppendInt(dst, v.Int, 10), nil
	case bintable.KindUint:
		return strconv.AppendUint(dst, v.Uint, 10), nil
	case bintable.KindFloat:
		return f.appendFloat(dst, v.Float, floatBits(c)), nil
	case bintable.KindComplex:
		dst = append(dst, '[')
		dst = f.appendFloat(dst, v.Float, floatBits(c))
		dst = append(dst, ',')
		dst = f.appendFloat(dst, v.Imag, floatBits(c))
		return append(dst, ']'), nil
	case bintable.KindString:
		return appendJSONString(dst, string(v.Bytes))
	case bintable.KindArray:
		a := v.Array
		dst = append(dst, '[')
		for i := range a.Len() {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = f.appendValue(dst, c, a.At(i)); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	}
	return append(dst, "null"...), nil
}

func (f *JSONLines) appendFloat(dst []byte, v float64, bits int) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(dst, "null"...)
	}
	if f.prec >= 0 {
		return strconv.AppendFloat(dst, v, 'f', f.prec, bits)
	}
	return strconv.AppendFloat(dst, v, 'g', -1, bits)
}

func appendJSONString(dst []byte, s string) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}
