package source

import (
	"fmt"

	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// Table is a view of one binary table inside an open File. Its slices
// borrow the file bytes.
type Table struct {
	Desc  *bintable.Descriptor
	table []byte
	heap  []byte
}

// TableBytes is the main table: Rows*RowWidth bytes.
func (t *Table) TableBytes() []byte { return t.table }

// HeapBytes is the heap, starting at THEAP.
func (t *Table) HeapBytes() []byte { return t.heap }

// RowBytes returns the raw bytes of row i.
func (t *Table) RowBytes(i int64) ([]byte, error) {
	if i < 0 || i >= t.Desc.Rows {
		return nil, fmt.Errorf("%w: row %d (table has %d)", ErrOutOfRange, i, t.Desc.Rows)
	}
	return t.Desc.Row(t.table, i), nil
}

// DecodeRow decodes row i, wrapping failures in a *bintable.RowError.
func (t *Table) DecodeRow(i int64) (bintable.Row, error) {
	raw, err := t.RowBytes(i)
	if err != nil {
		return bintable.Row{}, err
	}
	row, err := t.Desc.DecodeRow(raw, t.heap)
	if err != nil {
		return bintable.Row{}, bintable.WrapRowError(t.Desc.HDU, i, err)
	}
	return row, nil
}
