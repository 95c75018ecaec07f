// Package rowfmt renders decoded table rows into output records.
package rowfmt

import (
	"fmt"
	"strings"

	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// Formatter appends the encoding of one table header or row to dst.
// Implementations must be safe for concurrent use: scan workers share one
// formatter.
type Formatter interface {
	AppendHeader(dst []byte, d *bintable.Descriptor) ([]byte, error)
	AppendRow(dst []byte, d *bintable.Descriptor, r *bintable.Row) ([]byte, error)
}

// Options configures the formatters built by ByName.
type Options struct {
	// Delimiter separates CSV fields. Zero means ','.
	Delimiter byte
	// Precision is the number of decimals of floats; -1 is the shortest
	// representation that round-trips.
	Precision int
	// QuoteAll quotes every CSV field.
	QuoteAll bool
}

// DefaultOptions matches the reference CSV output.
func DefaultOptions() Options {
	return Options{Delimiter: ',', Precision: -1}
}

// Names lists the formats ByName accepts.
func Names() []string { return []string{"csv", "jsonl", "cbor"} }

// Extension is the conventional file extension for a format.
func Extension(name string) string {
	switch strings.ToLower(name) {
	case "jsonl", "json", "ndjson":
		return "jsonl"
	case "cbor":
		return "cbor"
	default:
		return "csv"
	}
}

// ByName returns the formatter for name.
func ByName(name string, opts Options) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return NewCSV(opts), nil
	case "jsonl", "json", "ndjson":
		return NewJSONLines(opts), nil
	case "cbor":
		return NewCBOR()
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s)", name, strings.Join(Names(), ", "))
	}
}

// floatBits is the precision at which a column's floats were stored.
// Rescaled values are computed in float64.
func floatBits(c *bintable.Column) int {
	switch c.ValueType() {
	case bintable.TypeFloat32, bintable.TypeComplex64:
		if !c.Scaled() {
			return 32
		}
	}
	return 64
}
