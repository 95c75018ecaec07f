package fitstest

import "strconv"

// Synthetic is a table of n rows with a deterministic body: ID (1J) = i,
// FLUX (1D) = i/2, FLAG (1L) alternating, SPEC (1PB) with i%4 bytes of heap
// each holding byte(i).
func Synthetic(n int) *Table {
	t := &Table{
		Name: "EVENTS",
		Columns: []Column{
			{Name: "ID", Form: "1J"},
			{Name: "FLUX", Form: "1D", Unit: "Jy"},
			{Name: "FLAG", Form: "1L"},
			{Name: "SPEC", Form: "1PB(3)"},
		},
		Width: 4 + 8 + 1 + 8,
		rows:  make([]byte, 0, n*(4+8+1+8)),
	}
	for i := range n {
		count := i % 4
		payload := make([]byte, count)
		for j := range payload {
			payload[j] = byte(i)
		}
		off := t.AddHeap(payload)
		flag := i%2 == 0
		t.AddRow(I32(int32(i)), F64(float64(i)/2), Logical(&flag), P(int32(count), int32(off)))
	}
	return t
}

// Catalog is a table of n rows with fixed-width columns only: ID (1J) = i,
// FLUX (1D) = i/2 and NAME (8A) = "src<i%10000>" blank padded, left blank
// on every third row.
func Catalog(n int) *Table {
	t := &Table{
		Name: "CATALOG",
		Columns: []Column{
			{Name: "ID", Form: "1J"},
			{Name: "FLUX", Form: "1D"},
			{Name: "NAME", Form: "8A"},
		},
		Width: 4 + 8 + 8,
		rows:  make([]byte, 0, n*(4+8+8)),
	}
	for i := range n {
		name := ""
		if i%3 != 0 {
			name = "src" + strconv.Itoa(i%10000)
		}
		t.AddRow(I32(int32(i)), F64(float64(i)/2), Str(name, 8))
	}
	return t
}
