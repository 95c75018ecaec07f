package bintable

import (
	"fmt"
	"math"
	"strings"

	"github.com/samcharles93/fitstable/pkg/fits"
)

// interp selects how stored integers are turned into values.
type interp uint8

const (
	interpRaw    interp = iota
	interpOffset        // TSCAL=1 and TZERO is the type's sign offset: exact integer
	interpScaled        // raw*scale+zero as float64
)

// Column describes one field of a row. Offset is derived from the widths of
// the columns before it; it is never read from the header.
type Column struct {
	Index   int
	Name    string
	Unit    string
	Display string
	TForm
	Offset  int
	Scale   float64
	Zero    float64
	HasNull bool
	Null    int64

	interp interp
}

// Label is the column name, or col_<index> for unnamed columns.
func (c *Column) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("col_%d", c.Index)
}

// ValueType is the type of the decoded elements: the element type for heap
// columns, the storage type otherwise.
func (c *Column) ValueType() TypeCode {
	if c.Type.IsHeap() {
		return c.Elem
	}
	return c.Type
}

// Scaled reports whether decoded values go through raw*scale+zero.
func (c *Column) Scaled() bool { return c.interp == interpScaled }

// Unsigned reports whether TZERO re-signs the stored integers (signed bytes,
// unsigned 16/32/64-bit integers).
func (c *Column) Unsigned() bool { return c.interp == interpOffset }

// Descriptor is the immutable layout of one BINTABLE HDU. It is shared
// read-only by every scan worker.
type Descriptor struct {
	HDU      int
	Name     string
	RowWidth int
	Rows     int64
	Columns  []Column
	// HeapOffset is relative to the start of the data section.
	HeapOffset int64
	HeapSize   int64
	// DataSize is NAXIS1*NAXIS2 + PCOUNT.
	DataSize int64
}

// TableSize is the byte size of the main (fixed-width) table.
func (d *Descriptor) TableSize() int64 { return int64(d.RowWidth) * d.Rows }

func (d *Descriptor) HasHeap() bool {
	for i := range d.Columns {
		if d.Columns[i].Type.IsHeap() {
			return true
		}
	}
	return false
}

// Row returns the bytes of row i of the main table.
func (d *Descriptor) Row(table []byte, i int64) []byte {
	start := i * int64(d.RowWidth)
	return table[start : start+int64(d.RowWidth)]
}

func (d *Descriptor) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if strings.EqualFold(d.Columns[i].Name, name) {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// BuildHDU builds the descriptor of a BINTABLE HDU and checks it against the
// data size declared in the HDU layout.
func BuildHDU(h fits.HDU) (*Descriptor, error) {
	if h.Kind != fits.KindBinTable {
		return nil, fmt.Errorf("%w: hdu %d is %s, not BINTABLE", fits.ErrMalformedHeader, h.Index, h.Kind)
	}
	d, err := Build(h.Header)
	if err != nil {
		return nil, fmt.Errorf("hdu %d: %w", h.Index, err)
	}
	if d.DataSize != h.DataSize {
		return nil, fmt.Errorf("%w: hdu %d table declares %d data bytes, layout has %d",
			fits.ErrMalformedHeader, h.Index, d.DataSize, h.DataSize)
	}
	d.HDU = h.Index
	return d, nil
}

// Build turns the keywords of a BINTABLE header into a Descriptor.
func Build(h *fits.Header) (*Descriptor, error) {
	if ext, ok := h.LookupString("XTENSION"); !ok || strings.TrimSpace(ext) != "BINTABLE" {
		return nil, fmt.Errorf("%w: XTENSION is not BINTABLE", fits.ErrMalformedHeader)
	}
	for _, kw := range []struct {
		key  string
		want int64
	}{{"BITPIX", 8}, {"NAXIS", 2}, {"GCOUNT", 1}} {
		v, err := h.Int(kw.key)
		if err != nil {
			return nil, err
		}
		if v != kw.want {
			return nil, fmt.Errorf("%w: %s = %d, want %d", fits.ErrMalformedHeader, kw.key, v, kw.want)
		}
	}
	rowWidth, err := nonNegative(h, "NAXIS1")
	if err != nil {
		return nil, err
	}
	rows, err := nonNegative(h, "NAXIS2")
	if err != nil {
		return nil, err
	}
	pcount, err := nonNegative(h, "PCOUNT")
	if err != nil {
		return nil, err
	}
	nfields, err := nonNegative(h, "TFIELDS")
	if err != nil {
		return nil, err
	}
	if nfields > 999 {
		return nil, fmt.Errorf("%w: TFIELDS = %d", fits.ErrMalformedHeader, nfields)
	}
	if rowWidth > math.MaxInt32 {
		return nil, fmt.Errorf("%w: NAXIS1 = %d too large", fits.ErrMalformedHeader, rowWidth)
	}
	if rows > 0 && rowWidth > math.MaxInt64/rows {
		return nil, fmt.Errorf("%w: table size overflow", fits.ErrMalformedHeader)
	}

	d := &Descriptor{
		RowWidth: int(rowWidth),
		Rows:     rows,
		Columns:  make([]Column, nfields),
	}
	d.Name, _ = h.LookupString("EXTNAME")

	offset := 0
	for i := range d.Columns {
		c, err := buildColumn(h, i)
		if err != nil {
			return nil, err
		}
		c.Offset = offset
		offset += c.Width()
		if offset > d.RowWidth {
			return nil, fmt.Errorf("%w: column %d (%s) ends at byte %d past NAXIS1 = %d",
				fits.ErrMalformedHeader, i+1, c.Label(), offset, d.RowWidth)
		}
		d.Columns[i] = c
	}
	if offset != d.RowWidth {
		return nil, fmt.Errorf("%w: column widths sum to %d, NAXIS1 = %d",
			fits.ErrMalformedHeader, offset, d.RowWidth)
	}

	main := d.TableSize()
	if pcount > math.MaxInt64-main {
		return nil, fmt.Errorf("%w: data size overflow", fits.ErrMalformedHeader)
	}
	d.DataSize = main + pcount
	d.HeapOffset = main
	if theap, ok, err := h.LookupInt("THEAP"); err != nil {
		return nil, err
	} else if ok {
		d.HeapOffset = theap
	}
	if d.HeapOffset < main || d.HeapOffset > d.DataSize {
		return nil, fmt.Errorf("%w: THEAP = %d outside [%d, %d]",
			fits.ErrMalformedHeader, d.HeapOffset, main, d.DataSize)
	}
	d.HeapSize = d.DataSize - d.HeapOffset
	return d, nil
}

func buildColumn(h *fits.Header, i int) (Column, error) {
	n := i + 1
	key := func(prefix string) string { return fmt.Sprintf("%s%d", prefix, n) }

	tformStr, ok := h.LookupString(key("TFORM"))
	if !ok {
		return Column{}, fmt.Errorf("%w: missing keyword %s", fits.ErrMalformedHeader, key("TFORM"))
	}
	tform, err := ParseTForm(tformStr)
	if err != nil {
		return Column{}, fmt.Errorf("column %d: %w", n, err)
	}

	c := Column{Index: i, TForm: tform, Scale: 1}
	c.Name, _ = h.LookupString(key("TTYPE"))
	c.Name = strings.TrimSpace(c.Name)
	c.Unit, _ = h.LookupString(key("TUNIT"))
	c.Display, _ = h.LookupString(key("TDISP"))

	if v, ok, err := h.LookupFloat(key("TSCAL")); err != nil {
		return Column{}, err
	} else if ok {
		c.Scale = v
	}
	if v, ok, err := h.LookupFloat(key("TZERO")); err != nil {
		return Column{}, err
	} else if ok {
		c.Zero = v
	}
	if v, ok, err := h.LookupInt(key("TNULL")); err != nil {
		return Column{}, err
	} else if ok {
		c.HasNull = true
		c.Null = v
	}
	c.interp = interpretation(c.ValueType(), c.Scale, c.Zero)
	return c, nil
}

func nonNegative(h *fits.Header, key string) (int64, error) {
	v, err := h.Int(key)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s = %d", fits.ErrMalformedHeader, key, v)
	}
	return v, nil
}

// signOffset is the TZERO value that maps a stored integer type onto its
// opposite-signedness counterpart.
func signOffset(t TypeCode) float64 {
	switch t {
	case TypeUint8:
		return -128
	case TypeInt16:
		return 1 << 15
	case TypeInt32:
		return 1 << 31
	case TypeInt64:
		return 1 << 63
	}
	return 0
}

func interpretation(t TypeCode, scale, zero float64) interp {
	identity := scale == 1 && zero == 0
	switch {
	case t.IsInteger():
		if identity {
			return interpRaw
		}
		if scale == 1 && zero == signOffset(t) {
			return interpOffset
		}
		return interpScaled
	case t == TypeFloat32, t == TypeFloat64, t == TypeComplex64, t == TypeComplex128:
		if identity {
			return interpRaw
		}
		return interpScaled
	}
	// Rescaling has no meaning for logical, bit and character fields.
	return interpRaw
}
