package source

import (
	"bytes"
	"testing"

	"github.com/samcharles93/fitstable/internal/fitstest"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	broken := &fitstest.Table{Name: "BAD", Columns: []fitstest.Column{{Form: "1J"}}, Width: 6}
	data := fitstest.File(fitstest.Synthetic(4), broken)
	f, err := OpenReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	infos := f.Describe()
	if len(infos) != 3 {
		t.Fatalf("hdu count mismatch: got %d want 3", len(infos))
	}
	if infos[0].Kind != "PRIMARY" || infos[0].Table != nil {
		t.Fatalf("primary mismatch: got %+v", infos[0])
	}

	ev := infos[1]
	if ev.Kind != "BINTABLE" || ev.Name != "EVENTS" || ev.Table == nil {
		t.Fatalf("events hdu mismatch: got %+v", ev)
	}
	if ev.Table.Rows != 4 || ev.Table.RowWidth != 21 || len(ev.Table.Columns) != 4 {
		t.Fatalf("events table mismatch: got %+v", ev.Table)
	}
	spec := ev.Table.Columns[3]
	if spec.Name != "SPEC" || spec.TForm != "PB(3)" || spec.Type != "u8" || spec.Offset != 13 {
		t.Fatalf("SPEC column mismatch: got %+v", spec)
	}
	if ev.Table.Columns[1].Unit != "Jy" || ev.Table.Columns[1].Scale != 1 {
		t.Fatalf("FLUX column mismatch: got %+v", ev.Table.Columns[1])
	}

	if infos[2].Name != "BAD" || infos[2].Table != nil || infos[2].Error == "" {
		t.Fatalf("broken hdu mismatch: got %+v", infos[2])
	}
}
