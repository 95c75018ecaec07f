package fits

import (
	"errors"
	"testing"
)

func TestReadHDUs(t *testing.T) {
	t.Parallel()

	data := block(
		"SIMPLE  =                    T",
		"BITPIX  =                   16",
		"NAXIS   =                    2",
		"NAXIS1  =                   10",
		"NAXIS2  =                    3",
		"END",
	)
	data = append(data, make([]byte, BlockSize)...)
	data = append(data, block(
		"XTENSION= 'BINTABLE'",
		"BITPIX  =                    8",
		"NAXIS   =                    2",
		"NAXIS1  =                   12",
		"NAXIS2  =                    5",
		"PCOUNT  =                   40",
		"GCOUNT  =                    1",
		"TFIELDS =                    0",
		"END",
	)...)
	data = append(data, make([]byte, BlockSize)...)

	hdus, err := ReadHDUs(data)
	if err != nil {
		t.Fatalf("ReadHDUs: %v", err)
	}
	if len(hdus) != 2 {
		t.Fatalf("hdu count mismatch: got %d want 2", len(hdus))
	}
	if hdus[0].Kind != KindPrimary || hdus[0].DataSize != 60 || hdus[0].DataOffset != BlockSize {
		t.Fatalf("primary mismatch: got %+v", hdus[0])
	}
	ext := hdus[1]
	if ext.Kind != KindBinTable || ext.HeaderOffset != 2*BlockSize || ext.DataSize != 100 {
		t.Fatalf("extension mismatch: got kind %s offset %d size %d", ext.Kind, ext.HeaderOffset, ext.DataSize)
	}
	if ext.End() != int64(len(data)) {
		t.Fatalf("end mismatch: got %d want %d", ext.End(), len(data))
	}
}

func TestReadHDUsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no simple", block("BITPIX  =                    8", "END")},
		{"bad bitpix", block("SIMPLE  =                    T", "BITPIX  =                    7", "NAXIS   =                    0", "END")},
		{"data past eof", block("SIMPLE  =                    T", "BITPIX  =                    8", "NAXIS   =                    1", "NAXIS1  =                   10", "END")},
		{"overflow", block("SIMPLE  =                    T", "BITPIX  =                   64", "NAXIS   =                    2",
			"NAXIS1  =  4611686018427387904", "NAXIS2  =                    4", "END")},
	}
	for _, tt := range tests {
		if _, err := ReadHDUs(tt.data); !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("%s: error mismatch: got %v want %v", tt.name, err, ErrMalformedHeader)
		}
	}
}

func TestPadToBlock(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ in, want int64 }{{0, 0}, {1, 2880}, {2880, 2880}, {2881, 5760}} {
		if got := PadToBlock(tt.in); got != tt.want {
			t.Fatalf("PadToBlock(%d) mismatch: got %d want %d", tt.in, got, tt.want)
		}
	}
}
