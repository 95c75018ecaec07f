package bintable

import (
	"errors"
	"testing"

	"github.com/samcharles93/fitstable/internal/fitstest"
	"github.com/samcharles93/fitstable/pkg/fits"
)

func buildTable(t *testing.T, tab *fitstest.Table) (*Descriptor, error) {
	t.Helper()
	hdus, err := fits.ReadHDUs(fitstest.File(tab))
	if err != nil {
		t.Fatalf("ReadHDUs: %v", err)
	}
	return BuildHDU(hdus[1])
}

func TestBuildDescriptor(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{
		Name: "EVENTS",
		Columns: []fitstest.Column{
			{Name: "TIME", Form: "1D", Unit: "s"},
			{Name: "PHA", Form: "1I", Cards: []fitstest.Card{{Key: "TNULL", Value: -1}}},
			{Name: "NAME", Form: "8A"},
			{Form: "1PE(4)"},
			{Name: "MASK", Form: "10X"},
		},
		Width: 8 + 2 + 8 + 8 + 2,
		Heap:  make([]byte, 16),
		Gap:   4,
	}
	d, err := buildTable(t, tab)
	if err != nil {
		t.Fatalf("BuildHDU: %v", err)
	}
	if d.HDU != 1 || d.Name != "EVENTS" {
		t.Fatalf("identity mismatch: got hdu %d name %q", d.HDU, d.Name)
	}
	if d.RowWidth != 28 || d.Rows != 0 {
		t.Fatalf("shape mismatch: got width %d rows %d", d.RowWidth, d.Rows)
	}
	wantOffsets := []int{0, 8, 10, 18, 26}
	for i, c := range d.Columns {
		if c.Offset != wantOffsets[i] {
			t.Fatalf("column %d offset mismatch: got %d want %d", i, c.Offset, wantOffsets[i])
		}
	}
	if got := d.Columns[3].Label(); got != "col_3" {
		t.Fatalf("unnamed label mismatch: got %q", got)
	}
	if !d.Columns[1].HasNull || d.Columns[1].Null != -1 {
		t.Fatalf("TNULL mismatch: got %v %d", d.Columns[1].HasNull, d.Columns[1].Null)
	}
	if d.Columns[0].Unit != "s" {
		t.Fatalf("unit mismatch: got %q", d.Columns[0].Unit)
	}
	if d.HeapOffset != 4 || d.HeapSize != 16 || d.DataSize != 20 {
		t.Fatalf("heap mismatch: got offset %d size %d data %d", d.HeapOffset, d.HeapSize, d.DataSize)
	}
	if !d.HasHeap() {
		t.Fatalf("expected heap column")
	}
	if c, ok := d.Column("mask"); !ok || c.Index != 4 {
		t.Fatalf("Column lookup mismatch: got %v %v", c, ok)
	}
}

func TestBuildRescaleModes(t *testing.T) {
	t.Parallel()

	tab := &fitstest.Table{
		Columns: []fitstest.Column{
			{Name: "A", Form: "1I"},
			{Name: "B", Form: "1I", Cards: []fitstest.Card{{Key: "TZERO", Value: 32768}}},
			{Name: "C", Form: "1I", Cards: []fitstest.Card{{Key: "TSCAL", Value: 2.0}, {Key: "TZERO", Value: -1.0}}},
			{Name: "D", Form: "1K", Cards: []fitstest.Card{{Key: "TZERO", Value: fitstest.Raw("9223372036854775808")}}},
			{Name: "E", Form: "1B", Cards: []fitstest.Card{{Key: "TZERO", Value: -128}}},
			{Name: "F", Form: "1E", Cards: []fitstest.Card{{Key: "TSCAL", Value: 0.5}}},
			{Name: "G", Form: "4A", Cards: []fitstest.Card{{Key: "TSCAL", Value: 3.0}}},
		},
		Width: 2 + 2 + 2 + 8 + 1 + 4 + 4,
	}
	d, err := buildTable(t, tab)
	if err != nil {
		t.Fatalf("BuildHDU: %v", err)
	}
	tests := []struct {
		col              int
		scaled, unsigned bool
	}{
		{0, false, false},
		{1, false, true},
		{2, true, false},
		{3, false, true},
		{4, false, true},
		{5, true, false},
		{6, false, false},
	}
	for _, tt := range tests {
		c := &d.Columns[tt.col]
		if c.Scaled() != tt.scaled || c.Unsigned() != tt.unsigned {
			t.Fatalf("column %s mode mismatch: got scaled=%v unsigned=%v want scaled=%v unsigned=%v",
				c.Name, c.Scaled(), c.Unsigned(), tt.scaled, tt.unsigned)
		}
	}
}

func TestBuildMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tab  *fitstest.Table
		want error
	}{
		{
			name: "width mismatch",
			tab:  &fitstest.Table{Columns: []fitstest.Column{{Form: "1J"}}, Width: 6},
			want: fits.ErrMalformedHeader,
		},
		{
			name: "column past row",
			tab:  &fitstest.Table{Columns: []fitstest.Column{{Form: "1J"}, {Form: "1D"}}, Width: 8},
			want: fits.ErrMalformedHeader,
		},
		{
			name: "unknown type",
			tab:  &fitstest.Table{Columns: []fitstest.Column{{Form: "1Y"}}, Width: 1},
			want: fits.ErrUnsupportedType,
		},
		{
			name: "empty tform",
			tab:  &fitstest.Table{Columns: []fitstest.Column{{Form: ""}}},
			want: fits.ErrMalformedHeader,
		},
		{
			name: "theap outside data",
			tab: &fitstest.Table{
				Columns: []fitstest.Column{{Form: "1PB"}},
				Width:   8,
				Heap:    make([]byte, 4),
				Cards:   []fitstest.Card{{Key: "THEAP", Value: 100}},
			},
			want: fits.ErrMalformedHeader,
		},
	}
	for _, tt := range tests {
		_, err := buildTable(t, tt.tab)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: error mismatch: got %v want %v", tt.name, err, tt.want)
		}
	}
}

func TestBuildRejectsNonTable(t *testing.T) {
	t.Parallel()

	hdus, err := fits.ReadHDUs(fitstest.Primary())
	if err != nil {
		t.Fatalf("ReadHDUs: %v", err)
	}
	if _, err := BuildHDU(hdus[0]); !errors.Is(err, fits.ErrMalformedHeader) {
		t.Fatalf("error mismatch: got %v want %v", err, fits.ErrMalformedHeader)
	}
}
