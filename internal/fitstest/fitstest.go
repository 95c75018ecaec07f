// Package fitstest builds small FITS files for tests.
package fitstest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// Raw is a value token written verbatim into the value field.
type Raw string

// Card is one header keyword. A nil Value writes a commentary card.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// FormatCard renders one 80-byte card in fixed format.
func FormatCard(c Card) []byte {
	var line string
	switch v := c.Value.(type) {
	case nil:
		line = fmt.Sprintf("%-8s%s", c.Key, c.Comment)
	default:
		line = fmt.Sprintf("%-8s= %s", c.Key, formatValue(v))
		if c.Comment != "" {
			line += " / " + c.Comment
		}
	}
	if len(line) > cardSize {
		line = line[:cardSize]
	}
	return []byte(fmt.Sprintf("%-80s", line))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return fmt.Sprintf("%20s", "T")
		}
		return fmt.Sprintf("%20s", "F")
	case int:
		return fmt.Sprintf("%20d", x)
	case int64:
		return fmt.Sprintf("%20d", x)
	case float64:
		s := strconv.FormatFloat(x, 'G', -1, 64)
		if !strings.ContainsAny(s, ".E") {
			s += ".0"
		}
		return fmt.Sprintf("%20s", s)
	case string:
		q := strings.ReplaceAll(x, "'", "''")
		if len(q) < 8 {
			q += strings.Repeat(" ", 8-len(q))
		}
		return fmt.Sprintf("%-20s", "'"+q+"'")
	case Raw:
		return fmt.Sprintf("%20s", string(x))
	default:
		panic(fmt.Sprintf("fitstest: unsupported card value %T", v))
	}
}

// Header renders cards followed by END, padded to a whole block.
func Header(cards ...Card) []byte {
	var buf bytes.Buffer
	for _, c := range cards {
		buf.Write(FormatCard(c))
	}
	buf.WriteString(fmt.Sprintf("%-80s", "END"))
	return pad(buf.Bytes(), ' ')
}

// Primary is an empty primary HDU.
func Primary() []byte {
	return Header(
		Card{Key: "SIMPLE", Value: true},
		Card{Key: "BITPIX", Value: 8},
		Card{Key: "NAXIS", Value: 0},
		Card{Key: "EXTEND", Value: true},
	)
}

// Column declares one table column. Cards are extra per-column keywords
// written without the column number (TSCAL, TZERO, TNULL...).
type Column struct {
	Name  string
	Form  string
	Unit  string
	Cards []Card
}

// Table is a BINTABLE HDU. Heap is written after Gap bytes following the
// main table. Width defaults to the size of the first row added.
type Table struct {
	Name    string
	Columns []Column
	Width   int
	Heap    []byte
	Gap     int
	Cards   []Card

	rows []byte
	n    int
}

// AddRow appends a row assembled from big-endian fields.
func (t *Table) AddRow(fields ...[]byte) {
	start := len(t.rows)
	for _, f := range fields {
		t.rows = append(t.rows, f...)
	}
	if t.Width == 0 && t.n == 0 {
		t.Width = len(t.rows) - start
	}
	t.n++
}

// NumRows is the number of rows added.
func (t *Table) NumRows() int { return t.n }

// RowData is the main table: every row, back to back.
func (t *Table) RowData() []byte { return t.rows }

// AddHeap appends payload to the heap and returns its offset.
func (t *Table) AddHeap(payload []byte) int {
	off := len(t.Heap)
	t.Heap = append(t.Heap, payload...)
	return off
}

// HeaderCards is the table's header in write order.
func (t *Table) HeaderCards() []Card {
	cards := []Card{
		{Key: "XTENSION", Value: "BINTABLE"},
		{Key: "BITPIX", Value: 8},
		{Key: "NAXIS", Value: 2},
		{Key: "NAXIS1", Value: t.Width},
		{Key: "NAXIS2", Value: t.n},
		{Key: "PCOUNT", Value: t.Gap + len(t.Heap)},
		{Key: "GCOUNT", Value: 1},
		{Key: "TFIELDS", Value: len(t.Columns)},
	}
	if t.Gap > 0 {
		cards = append(cards, Card{Key: "THEAP", Value: t.Width*t.n + t.Gap})
	}
	for i, c := range t.Columns {
		n := strconv.Itoa(i + 1)
		if c.Name != "" {
			cards = append(cards, Card{Key: "TTYPE" + n, Value: c.Name})
		}
		cards = append(cards, Card{Key: "TFORM" + n, Value: c.Form})
		if c.Unit != "" {
			cards = append(cards, Card{Key: "TUNIT" + n, Value: c.Unit})
		}
		for _, extra := range c.Cards {
			extra.Key += n
			cards = append(cards, extra)
		}
	}
	if t.Name != "" {
		cards = append(cards, Card{Key: "EXTNAME", Value: t.Name})
	}
	return append(cards, t.Cards...)
}

// Bytes renders the HDU: header, rows, gap and heap, padded with zeros.
func (t *Table) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(Header(t.HeaderCards()...))
	var data bytes.Buffer
	data.Write(t.rows)
	data.Write(make([]byte, t.Gap))
	data.Write(t.Heap)
	buf.Write(pad(data.Bytes(), 0))
	return buf.Bytes()
}

// File renders a primary HDU followed by the given tables.
func File(tables ...*Table) []byte {
	out := Primary()
	for _, t := range tables {
		out = append(out, t.Bytes()...)
	}
	return out
}

// WriteFile writes data under t.TempDir and returns its path.
func WriteFile(t testing.TB, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.fits")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func pad(b []byte, fill byte) []byte {
	rem := len(b) % blockSize
	if rem == 0 {
		return b
	}
	return append(b, bytes.Repeat([]byte{fill}, blockSize-rem)...)
}
