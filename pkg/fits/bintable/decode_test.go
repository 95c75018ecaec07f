package bintable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/samcharles93/fitstable/internal/fitstest"
	"github.com/samcharles93/fitstable/pkg/fits"
)

// tableData returns the descriptor, main table and heap of the first
// extension of tab.
func tableData(t *testing.T, tab *fitstest.Table) (*Descriptor, []byte, []byte) {
	t.Helper()
	data := fitstest.File(tab)
	hdus, err := fits.ReadHDUs(data)
	if err != nil {
		t.Fatalf("ReadHDUs: %v", err)
	}
	h := hdus[1]
	d, err := BuildHDU(h)
	if err != nil {
		t.Fatalf("BuildHDU: %v", err)
	}
	section := data[h.DataOffset : h.DataOffset+h.DataSize]
	return d, section[:d.TableSize()], section[d.HeapOffset:]
}

func decodeAll(t *testing.T, tab *fitstest.Table) []Row {
	t.Helper()
	d, table, heap := tableData(t, tab)
	rows := make([]Row, d.Rows)
	for i := range rows {
		r, err := d.DecodeRow(d.Row(table, int64(i)), heap)
		if err != nil {
			t.Fatalf("DecodeRow(%d): %v", i, err)
		}
		rows[i] = r
	}
	return rows
}

func TestDecodeRescale(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{{
		Name:  "PHA",
		Form:  "1I",
		Cards: []fitstest.Card{{Key: "TSCAL", Value: 2.0}, {Key: "TZERO", Value: -1.0}},
	}}}
	tab.AddRow(fitstest.I16(10))
	v := decodeAll(t, tab)[0].Values[0]
	if v.Kind != KindFloat || v.Float != 19.0 {
		t.Fatalf("rescale mismatch: got %v %v want float 19", v.Kind, v.Float)
	}
}

func TestDecodeSignOffsets(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{
		{Name: "U16", Form: "1I", Cards: []fitstest.Card{{Key: "TZERO", Value: 32768}}},
		{Name: "U32", Form: "1J", Cards: []fitstest.Card{{Key: "TZERO", Value: 2147483648}}},
		{Name: "U64", Form: "1K", Cards: []fitstest.Card{{Key: "TZERO", Value: fitstest.Raw("9223372036854775808")}}},
		{Name: "S8", Form: "1B", Cards: []fitstest.Card{{Key: "TZERO", Value: -128}}},
	}}
	tab.AddRow(fitstest.I16(math.MinInt16), fitstest.I32(math.MinInt32), fitstest.I64(math.MinInt64), fitstest.U8(0))
	tab.AddRow(fitstest.I16(math.MaxInt16), fitstest.I32(math.MaxInt32), fitstest.I64(math.MaxInt64), fitstest.U8(255))
	tab.AddRow(fitstest.I16(-1), fitstest.I32(-1), fitstest.I64(-1), fitstest.U8(127))
	rows := decodeAll(t, tab)

	want := [][]Value{
		{{Kind: KindUint, Uint: 0}, {Kind: KindUint, Uint: 0}, {Kind: KindUint, Uint: 0}, {Kind: KindInt, Int: -128}},
		{{Kind: KindUint, Uint: math.MaxUint16}, {Kind: KindUint, Uint: math.MaxUint32}, {Kind: KindUint, Uint: math.MaxUint64}, {Kind: KindInt, Int: 127}},
		{{Kind: KindUint, Uint: math.MaxInt16}, {Kind: KindUint, Uint: math.MaxInt32}, {Kind: KindUint, Uint: math.MaxInt64}, {Kind: KindInt, Int: -1}},
	}
	for i, r := range rows {
		for j, v := range r.Values {
			w := want[i][j]
			if v.Kind != w.Kind || v.Uint != w.Uint || v.Int != w.Int {
				t.Fatalf("row %d col %d mismatch: got %+v want %+v", i, j, v, w)
			}
		}
	}
}

func TestDecodeBits(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{{Name: "MASK", Form: "5X"}}}
	tab.AddRow(fitstest.U8(0b10110000))
	v := decodeAll(t, tab)[0].Values[0]
	if v.Kind != KindArray || v.Array.Elem() != TypeBit {
		t.Fatalf("kind mismatch: got %v %v", v.Kind, v.Array.Elem())
	}
	want := []bool{true, false, true, true, false}
	if got := v.Array.Bools(); !slices.Equal(got, want) {
		t.Fatalf("bits mismatch: got %v want %v", got, want)
	}
}

func TestDecodeLogical(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{
		{Name: "ONE", Form: "1L"},
		{Name: "MANY", Form: "4L"},
	}}
	tab.AddRow([]byte{'T'}, []byte{'T', 'F', 0, 'x'})
	r := decodeAll(t, tab)[0]
	if v := r.Values[0]; v.Kind != KindBool || !v.Bool || v.Null {
		t.Fatalf("scalar mismatch: got %+v", v)
	}
	arr := r.Values[1].Array
	if arr.Len() != 4 {
		t.Fatalf("len mismatch: got %d want 4", arr.Len())
	}
	wantNull := []bool{false, false, true, false}
	wantBool := []bool{true, false, false, false}
	for i := range 4 {
		v := arr.At(i)
		if v.Null != wantNull[i] || v.Bool != wantBool[i] {
			t.Fatalf("element %d mismatch: got %+v", i, v)
		}
	}
}

func TestDecodeNull(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{{
		Name:  "COUNTS",
		Form:  "1J",
		Cards: []fitstest.Card{{Key: "TNULL", Value: -99}},
	}}}
	tab.AddRow(fitstest.I32(-99))
	tab.AddRow(fitstest.I32(7))
	rows := decodeAll(t, tab)
	if v := rows[0].Values[0]; !v.Null || v.Int != -99 {
		t.Fatalf("null mismatch: got %+v", v)
	}
	if v := rows[1].Values[0]; v.Null || v.Int != 7 {
		t.Fatalf("value mismatch: got %+v", v)
	}
}

func TestDecodeStrings(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{{Name: "NAME", Form: "8A"}}}
	tab.AddRow(fitstest.Str("  m31", 8))
	tab.AddRow([]byte{'a', 'b', 0, 'z', 'z', 'z', 'z', 'z'})
	tab.AddRow(fitstest.Str("", 8))
	rows := decodeAll(t, tab)
	for i, want := range []string{"  m31", "ab", ""} {
		v := rows[i].Values[0]
		if v.Kind != KindString || v.Str() != want {
			t.Fatalf("row %d mismatch: got %v %q want %q", i, v.Kind, v.Str(), want)
		}
	}
}

func TestDecodeComplex(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{
		{Name: "C", Form: "1C"},
		{Name: "M", Form: "1M"},
	}}
	tab.AddRow(fitstest.F32(1.5), fitstest.F32(-2), fitstest.F64(3), fitstest.F64(0.25))
	r := decodeAll(t, tab)[0]
	if v := r.Values[0]; v.Kind != KindComplex || v.Float != 1.5 || v.Imag != -2 {
		t.Fatalf("c64 mismatch: got %+v", v)
	}
	if v := r.Values[1]; v.Kind != KindComplex || v.Float != 3 || v.Imag != 0.25 {
		t.Fatalf("c128 mismatch: got %+v", v)
	}
}

func TestDecodeHeap(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{
		Columns: []fitstest.Column{
			{Name: "SPEC", Form: "1PE(2)"},
			{Name: "LABEL", Form: "1QA(5)"},
		},
		Gap: 3,
	}
	spec := tab.AddHeap(fitstest.Concat(fitstest.F32(1.25), fitstest.F32(-4)))
	label := tab.AddHeap([]byte("hello"))
	tab.AddRow(fitstest.P(2, int32(spec)), fitstest.Q(5, int64(label)))
	tab.AddRow(fitstest.P(0, 0), fitstest.Q(0, 0))

	rows := decodeAll(t, tab)
	arr := rows[0].Values[0].Array
	if arr.Len() != 2 || arr.At(0).Float != 1.25 || arr.At(1).Float != -4 {
		t.Fatalf("heap array mismatch: got len %d", arr.Len())
	}
	if got := rows[0].Values[1].Str(); got != "hello" {
		t.Fatalf("heap string mismatch: got %q", got)
	}
	if got := rows[1].Values[0].Array.Len(); got != 0 {
		t.Fatalf("empty heap array mismatch: got len %d", got)
	}
	if got := rows[1].Values[1]; got.Kind != KindString || len(got.Bytes) != 0 {
		t.Fatalf("empty heap string mismatch: got %+v", got)
	}
}

func TestDecodeHeapRange(t *testing.T) {
	t.Parallel()

	refs := [][]byte{
		fitstest.P(2, 4),
		fitstest.P(-1, 0),
		fitstest.P(1, -4),
		fitstest.P(1, 9),
		fitstest.P(math.MaxInt32, 0),
	}
	for _, ref := range refs {
		tab := &fitstest.Table{Columns: []fitstest.Column{{Name: "SPEC", Form: "1PE"}}}
		tab.AddHeap(make([]byte, 8))
		tab.AddRow(ref)
		d, table, heap := tableData(t, tab)
		_, err := d.DecodeRow(d.Row(table, 0), heap)
		if !errors.Is(err, fits.ErrHeapRange) {
			t.Fatalf("ref %x error mismatch: got %v want %v", ref, err, fits.ErrHeapRange)
		}
		var ce *ColumnError
		if !errors.As(err, &ce) || ce.Column != "SPEC" {
			t.Fatalf("ref %x: expected column error for SPEC, got %v", ref, err)
		}
	}

	ref := HeapRef{Count: math.MaxInt64, Offset: 0}
	if _, err := ref.Resolve(make([]byte, 16), TypeFloat64); !errors.Is(err, fits.ErrHeapRange) {
		t.Fatalf("huge count error mismatch: got %v", err)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{
		{Name: "ID", Form: "1K"},
		{Name: "POS", Form: "2D"},
		{Name: "PHA", Form: "3I"},
		{Name: "FLUX", Form: "1E"},
		{Name: "TAG", Form: "4A"},
	}}
	for i := range 5 {
		tab.AddRow(
			fitstest.I64(int64(i)*1e12),
			fitstest.F64(float64(i)*0.1), fitstest.F64(-float64(i)),
			fitstest.I16(int16(i)), fitstest.I16(int16(-i)), fitstest.I16(math.MaxInt16),
			fitstest.F32(float32(i)/3),
			fitstest.Str("ab", 4),
		)
	}
	d, table, heap := tableData(t, tab)
	var r Row
	for i := range d.Rows {
		raw := d.Row(table, i)
		if err := d.DecodeRowInto(&r, raw, heap); err != nil {
			t.Fatalf("DecodeRowInto(%d): %v", i, err)
		}
		if got := encodeRow(t, d, r); !bytes.Equal(got, raw) {
			t.Fatalf("row %d round trip mismatch: got %x want %x", i, got, raw)
		}
	}
}

// encodeRow re-encodes unscaled values in storage order.
func encodeRow(t *testing.T, d *Descriptor, r Row) []byte {
	t.Helper()
	out := make([]byte, 0, d.RowWidth)
	for i := range d.Columns {
		c := &d.Columns[i]
		v := r.Values[i]
		elems := []Value{v}
		if v.Kind == KindArray {
			elems = elems[:0]
			for j := range v.Array.Len() {
				elems = append(elems, v.Array.At(j))
			}
		}
		for _, e := range elems {
			switch c.Type {
			case TypeInt16:
				out = binary.BigEndian.AppendUint16(out, uint16(e.Int))
			case TypeInt64:
				out = binary.BigEndian.AppendUint64(out, uint64(e.Int))
			case TypeFloat32:
				out = binary.BigEndian.AppendUint32(out, math.Float32bits(float32(e.Float)))
			case TypeFloat64:
				out = binary.BigEndian.AppendUint64(out, math.Float64bits(e.Float))
			case TypeChar:
				out = append(out, fitstest.Str(e.Str(), c.Repeat)...)
			default:
				t.Fatalf("encodeRow: unhandled type %s", c.Type)
			}
		}
	}
	return out
}

func TestDecodeShortRow(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{Columns: []fitstest.Column{{Name: "ID", Form: "1J"}}}
	tab.AddRow(fitstest.I32(1))
	d, table, heap := tableData(t, tab)
	if _, err := d.DecodeRow(table[:2], heap); !errors.Is(err, ErrShortRow) {
		t.Fatalf("error mismatch: got %v want %v", err, ErrShortRow)
	}
}

func TestRowErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &RowError{HDU: 1, Row: 500000, Column: "SPEC", Err: fits.ErrHeapRange}
	if !errors.Is(err, fits.ErrHeapRange) {
		t.Fatalf("expected ErrHeapRange in chain")
	}
	if got, want := err.Error(), "hdu 1 row 500000 column SPEC: FITS heap reference out of range"; got != want {
		t.Fatalf("message mismatch: got %q want %q", got, want)
	}
}

func TestWrapRowError(t *testing.T) {
	t.Parallel()

	err := WrapRowError(2, 9, &ColumnError{Index: 3, Column: "SPEC", Err: fits.ErrHeapRange})
	var re *RowError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RowError, got %T", err)
	}
	if re.HDU != 2 || re.Row != 9 || re.Column != "SPEC" || re.Err != fits.ErrHeapRange {
		t.Fatalf("row error mismatch: got %+v", re)
	}
}
