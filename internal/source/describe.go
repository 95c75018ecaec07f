package source

import (
	"strings"

	"github.com/samcharles93/fitstable/pkg/fits"
	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// HDUInfo summarises one HDU for listings.
type HDUInfo struct {
	Index        int        `json:"index"`
	Kind         string     `json:"kind"`
	Name         string     `json:"name,omitempty"`
	HeaderOffset int64      `json:"header_offset"`
	DataOffset   int64      `json:"data_offset"`
	DataSize     int64      `json:"data_size"`
	Table        *TableInfo `json:"table,omitempty"`
	// Error is set when a binary table header cannot be decoded.
	Error string `json:"error,omitempty"`
}

type TableInfo struct {
	Rows       int64        `json:"rows"`
	RowWidth   int          `json:"row_width"`
	HeapOffset int64        `json:"heap_offset"`
	HeapSize   int64        `json:"heap_size"`
	Columns    []ColumnInfo `json:"columns"`
}

type ColumnInfo struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	TForm  string  `json:"tform"`
	Type   string  `json:"type"`
	Repeat int     `json:"repeat"`
	Offset int     `json:"offset"`
	Unit   string  `json:"unit,omitempty"`
	Scale  float64 `json:"scale"`
	Zero   float64 `json:"zero"`
	Null   *int64  `json:"null,omitempty"`
}

// Describe lists every HDU of the file. A table whose header is invalid is
// still listed, with Error set.
func (f *File) Describe() []HDUInfo {
	out := make([]HDUInfo, 0, len(f.hdus))
	for _, h := range f.hdus {
		info := HDUInfo{
			Index:        h.Index,
			Kind:         h.Kind.String(),
			HeaderOffset: h.HeaderOffset,
			DataOffset:   h.DataOffset,
			DataSize:     h.DataSize,
		}
		if name, ok := h.Header.LookupString("EXTNAME"); ok {
			info.Name = strings.TrimSpace(name)
		}
		if h.Kind == fits.KindBinTable {
			if d, err := bintable.BuildHDU(h); err != nil {
				info.Error = err.Error()
			} else {
				info.Table = describeTable(d)
			}
		}
		out = append(out, info)
	}
	return out
}

func describeTable(d *bintable.Descriptor) *TableInfo {
	t := &TableInfo{
		Rows:       d.Rows,
		RowWidth:   d.RowWidth,
		HeapOffset: d.HeapOffset,
		HeapSize:   d.HeapSize,
		Columns:    make([]ColumnInfo, len(d.Columns)),
	}
	for i := range d.Columns {
		c := &d.Columns[i]
		ci := ColumnInfo{
			Index:  c.Index,
			Name:   c.Label(),
			TForm:  c.TForm.String(),
			Type:   c.ValueType().String(),
			Repeat: c.Repeat,
			Offset: c.Offset,
			Unit:   c.Unit,
			Scale:  c.Scale,
			Zero:   c.Zero,
		}
		if c.HasNull {
			null := c.Null
			ci.Null = &null
		}
		t.Columns[i] = ci
	}
	return t
}
