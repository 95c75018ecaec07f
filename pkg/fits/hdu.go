package fits

import (
	"fmt"
	"math"
	"strings"
)

type Kind uint8

const (
	KindPrimary Kind = iota
	KindImage
	KindASCIITable
	KindBinTable
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "PRIMARY"
	case KindImage:
		return "IMAGE"
	case KindASCIITable:
		return "TABLE"
	case KindBinTable:
		return "BINTABLE"
	default:
		return "UNKNOWN"
	}
}

// HDU locates one Header/Data Unit inside a file. Offsets are absolute byte
// positions from the start of the file.
type HDU struct {
	Index        int
	Kind         Kind
	Extension    string
	Header       *Header
	HeaderOffset int64
	HeaderSize   int64
	DataOffset   int64
	// DataSize is the declared size of the data section, without padding.
	DataSize int64
}

// End returns the offset of the first byte after the padded data section.
func (h HDU) End() int64 {
	return h.DataOffset + PadToBlock(h.DataSize)
}

// ReadHDUs walks every HDU of a complete FITS byte image.
func ReadHDUs(data []byte) ([]HDU, error) {
	var hdus []HDU
	size := int64(len(data))
	for off := int64(0); off < size; {
		idx := len(hdus)
		hdr, n, err := ParseHeader(data[off:])
		if err != nil {
			return nil, fmt.Errorf("hdu %d: %w", idx, err)
		}
		kind, ext, err := hduKind(hdr, idx == 0)
		if err != nil {
			return nil, fmt.Errorf("hdu %d: %w", idx, err)
		}
		dataSize, err := DataSize(hdr, kind == KindPrimary)
		if err != nil {
			return nil, fmt.Errorf("hdu %d: %w", idx, err)
		}
		h := HDU{
			Index:        idx,
			Kind:         kind,
			Extension:    ext,
			Header:       hdr,
			HeaderOffset: off,
			HeaderSize:   int64(n),
			DataOffset:   off + int64(n),
			DataSize:     dataSize,
		}
		if h.DataOffset+h.DataSize > size {
			return nil, fmt.Errorf("%w: hdu %d data section ends at %d past end of file (%d bytes)",
				ErrMalformedHeader, idx, h.DataOffset+h.DataSize, size)
		}
		hdus = append(hdus, h)
		off = h.End()
	}
	if len(hdus) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedHeader)
	}
	return hdus, nil
}

func hduKind(h *Header, first bool) (Kind, string, error) {
	if first {
		simple, ok := h.Bool("SIMPLE")
		if !ok || h.cards[0].Keyword != "SIMPLE" {
			return KindUnknown, "", fmt.Errorf("%w: primary header must start with SIMPLE", ErrMalformedHeader)
		}
		if !simple {
			return KindUnknown, "", fmt.Errorf("%w: SIMPLE = F", ErrMalformedHeader)
		}
		return KindPrimary, "", nil
	}
	ext, ok := h.LookupString("XTENSION")
	if !ok || h.cards[0].Keyword != "XTENSION" {
		return KindUnknown, "", fmt.Errorf("%w: extension header must start with XTENSION", ErrMalformedHeader)
	}
	switch strings.TrimSpace(ext) {
	case "IMAGE", "IUEIMAGE":
		return KindImage, ext, nil
	case "TABLE":
		return KindASCIITable, ext, nil
	case "BINTABLE", "A3DTABLE":
		return KindBinTable, ext, nil
	default:
		return KindUnknown, ext, nil
	}
}

// DataSize computes the unpadded size of the data section declared by h:
// |BITPIX|/8 * GCOUNT * (PCOUNT + NAXIS1*...*NAXISn).
func DataSize(h *Header, primary bool) (int64, error) {
	bitpix, err := h.Int("BITPIX")
	if err != nil {
		return 0, err
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return 0, fmt.Errorf("%w: invalid BITPIX %d", ErrMalformedHeader, bitpix)
	}
	naxis, err := h.Int("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis < 0 || naxis > 999 {
		return 0, fmt.Errorf("%w: invalid NAXIS %d", ErrMalformedHeader, naxis)
	}

	gcount, pcount := int64(1), int64(0)
	if !primary {
		if v, ok, err := h.LookupInt("GCOUNT"); err != nil {
			return 0, err
		} else if ok {
			gcount = v
		}
		if v, ok, err := h.LookupInt("PCOUNT"); err != nil {
			return 0, err
		} else if ok {
			pcount = v
		}
	}
	if gcount < 0 || pcount < 0 {
		return 0, fmt.Errorf("%w: negative GCOUNT/PCOUNT", ErrMalformedHeader)
	}

	if naxis == 0 {
		gp, err := mulChecked(gcount, pcount)
		if err != nil {
			return 0, err
		}
		return mulChecked(abs(bitpix)/8, gp)
	}

	first := int64(1)
	// Random groups store NAXIS1 = 0 and do not count it.
	groups, _ := h.Bool("GROUPS")
	if primary && groups {
		first = 2
	}
	prod := int64(1)
	for i := first; i <= naxis; i++ {
		n, err := h.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: negative NAXIS%d", ErrMalformedHeader, i)
		}
		if prod, err = mulChecked(prod, n); err != nil {
			return 0, err
		}
	}
	if pcount > math.MaxInt64-prod {
		return 0, fmt.Errorf("%w: data size overflow", ErrMalformedHeader)
	}
	total, err := mulChecked(gcount, prod+pcount)
	if err != nil {
		return 0, err
	}
	return mulChecked(abs(bitpix)/8, total)
}

func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, fmt.Errorf("%w: data size overflow", ErrMalformedHeader)
	}
	return a * b, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
