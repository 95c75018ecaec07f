package rowfmt

import (
	"bytes"
	"math"
	"strconv"

	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// CSV writes one RFC 4180 record per row. Arrays are written as a quoted
// "[a, b]" list, complex values as "(re, im)", bit arrays as a string of
// 0 and 1. Nulls and NaNs are empty fields.
type CSV struct {
	delim    byte
	prec     int
	quoteAll bool
}

func NewCSV(opts Options) *CSV {
	c := &CSV{delim: opts.Delimiter, prec: opts.Precision, quoteAll: opts.QuoteAll}
	if c.delim == 0 {
		c.delim = ','
	}
	return c
}

func (f *CSV) AppendHeader(dst []byte, d *bintable.Descriptor) ([]byte, error) {
	for i := range d.Columns {
		if i > 0 {
			dst = append(dst, f.delim)
		}
		dst = f.appendText(dst, []byte(d.Columns[i].Label()))
	}
	return append(dst, '\n'), nil
}

func (f *CSV) AppendRow(dst []byte, d *bintable.Descriptor, r *bintable.Row) ([]byte, error) {
	for i := range d.Columns {
		if i > 0 {
			dst = append(dst, f.delim)
		}
		dst = f.appendCell(dst, &d.Columns[i], r.Values[i])
	}
	return append(dst, '\n'), nil
}

func (f *CSV) appendCell(dst []byte, c *bintable.Column, v bintable.Value) []byte {
	if v.Null {
		return f.empty(dst)
	}
	switch v.Kind {
	case bintable.KindBool:
		if v.Bool {
			return f.wrap(append(f.open(dst), "true"...))
		}
		return f.wrap(append(f.open(dst), "false"...))
	case bintable.KindInt:
		return f.wrap(strconv.AppendInt(f.open(dst), v.Int, 10))
	case bintable.KindUint:
		return f.wrap(strconv.AppendUint(f.open(dst), v.Uint, 10))
	case bintable.KindFloat:
		if math.IsNaN(v.Float) {
			return f.empty(dst)
		}
		return f.wrap(appendFloat(f.open(dst), v.Float, f.prec, floatBits(c)))
	case bintable.KindComplex:
		dst = append(dst, '"', '(')
		dst = appendFloat(dst, v.Float, f.prec, floatBits(c))
		dst = append(dst, ", "...)
		dst = appendFloat(dst, v.Imag, f.prec, floatBits(c))
		return append(dst, ')', '"')
	case bintable.KindString:
		return f.appendText(dst, v.Bytes)
	case bintable.KindArray:
		return f.appendArray(dst, c, v.Array)
	}
	return f.empty(dst)
}

func (f *CSV) appendArray(dst []byte, c *bintable.Column, a bintable.Array) []byte {
	if a.Len() == 0 {
		return f.empty(dst)
	}
	if a.Elem() == bintable.TypeBit {
		dst = f.open(dst)
		for i := range a.Len() {
			if a.At(i).Bool {
				dst = append(dst, '1')
			} else {
				dst = append(dst, '0')
			}
		}
		return f.wrap(dst)
	}

	dst = append(dst, '"', '[')
	for i := range a.Len() {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		e := a.At(i)
		if e.Null {
			continue
		}
		switch e.Kind {
		case bintable.KindBool:
			if e.Bool {
				dst = append(dst, 'T')
			} else {
				dst = append(dst, 'F')
			}
		case bintable.KindInt:
			dst = strconv.AppendInt(dst, e.Int, 10)
		case bintable.KindUint:
			dst = strconv.AppendUint(dst, e.Uint, 10)
		case bintable.KindFloat:
			if !math.IsNaN(e.Float) {
				dst = appendFloat(dst, e.Float, f.prec, floatBits(c))
			}
		case bintable.KindComplex:
			dst = append(dst, '(')
			dst = appendFloat(dst, e.Float, f.prec, floatBits(c))
			dst = append(dst, ", "...)
			dst = appendFloat(dst, e.Imag, f.prec, floatBits(c))
			dst = append(dst, ')')
		}
	}
	return append(dst, ']', '"')
}

// appendText writes a text field, quoting it when it holds a quote, the
// delimiter or a line break.
func (f *CSV) appendText(dst, s []byte) []byte {
	if !f.quoteAll && !bytes.ContainsAny(s, "\"\r\n") && bytes.IndexByte(s, f.delim) < 0 {
		return append(dst, s...)
	}
	dst = append(dst, '"')
	for _, b := range s {
		if b == '"' {
			dst = append(dst, '"')
		}
		dst = append(dst, b)
	}
	return append(dst, '"')
}

func (f *CSV) open(dst []byte) []byte {
	if f.quoteAll {
		return append(dst, '"')
	}
	return dst
}

func (f *CSV) wrap(dst []byte) []byte {
	if f.quoteAll {
		return append(dst, '"')
	}
	return dst
}

func (f *CSV) empty(dst []byte) []byte {
	if f.quoteAll {
		return append(dst, '"', '"')
	}
	return dst
}

// appendFloat formats like the shortest decimal that round-trips, keeping a
// ".0" on integral values, or with a fixed number of decimals when prec >= 0.
func appendFloat(dst []byte, v float64, prec, bits int) []byte {
	if prec >= 0 {
		return strconv.AppendFloat(dst, v, 'f', prec, bits)
	}
	if math.IsInf(v, 0) {
		return strconv.AppendFloat(dst, v, 'g', -1, bits)
	}
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.AppendFloat(dst, v, 'e', -1, bits)
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, v, 'f', -1, bits)
	if bytes.IndexByte(dst[start:], '.') < 0 {
		dst = append(dst, '.', '0')
	}
	return dst
}
