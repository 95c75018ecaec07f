package bintable

import (
	"errors"
	"fmt"
)

// ErrShortRow is returned when a row slice is narrower than the descriptor's
// row width.
var ErrShortRow = errors.New("row shorter than table row width")

// ColumnError is a decode failure of one column.
type ColumnError struct {
	Index  int
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %s: %v", e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// RowError locates a decode failure inside a file.
type RowError struct {
	HDU    int
	Row    int64
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("hdu %d row %d: %v", e.HDU, e.Row, e.Err)
	}
	return fmt.Sprintf("hdu %d row %d column %s: %v", e.HDU, e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// WrapRowError locates err at a row of an HDU, lifting the column name out
// of a *ColumnError.
func WrapRowError(hdu int, row int64, err error) error {
	re := &RowError{HDU: hdu, Row: row, Err: err}
	var ce *ColumnError
	if errors.As(err, &ce) {
		re.Column = ce.Column
		re.Err = ce.Err
	}
	return re
}

// Row holds the decoded cells of one table row, in column order.
type Row struct {
	Values []Value
}

// Decode decodes the column's field of row. heap is the table's heap and is
// only read by P and Q columns.
func (c *Column) Decode(row, heap []byte) (Value, error) {
	end := c.Offset + c.Width()
	if end > len(row) {
		return Value{}, ErrShortRow
	}
	field := row[c.Offset:end]
	switch {
	case c.Repeat == 0:
		return Value{Kind: KindEmpty}, nil
	case c.Type.IsHeap():
		return c.decodeHeap(field, heap)
	case c.Type == TypeChar:
		return stringValue(field), nil
	case c.Type == TypeBit, c.Repeat > 1:
		return Value{Kind: KindArray, Array: Array{col: c, elem: c.Type, n: c.Repeat, raw: field}}, nil
	default:
		return c.scalar(c.Type, field), nil
	}
}

func (c *Column) decodeHeap(field, heap []byte) (Value, error) {
	ref := readHeapRef(c.Type, field)
	payload, err := ref.Resolve(heap, c.Elem)
	if err != nil {
		return Value{}, err
	}
	if c.Elem == TypeChar {
		return stringValue(payload), nil
	}
	return Value{Kind: KindArray, Array: Array{col: c, elem: c.Elem, n: int(ref.Count), raw: payload}}, nil
}

// DecodeRow decodes every column of one row.
func (d *Descriptor) DecodeRow(row, heap []byte) (Row, error) {
	var r Row
	err := d.DecodeRowInto(&r, row, heap)
	return r, err
}

// DecodeRowInto decodes one row into r, reusing r.Values. On error r holds
// the columns decoded so far.
func (d *Descriptor) DecodeRowInto(r *Row, row, heap []byte) error {
	if len(row) < d.RowWidth {
		return ErrShortRow
	}
	n := len(d.Columns)
	if cap(r.Values) < n {
		r.Values = make([]Value, n)
	}
	r.Values = r.Values[:n]
	for i := range d.Columns {
		c := &d.Columns[i]
		v, err := c.Decode(row, heap)
		if err != nil {
			return &ColumnError{Index: i, Column: c.Label(), Err: err}
		}
		r.Values[i] = v
	}
	return nil
}
