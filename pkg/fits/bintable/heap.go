package bintable

import (
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/fitstable/pkg/fits"
)

// HeapRef is the (count, offset) pair stored in a P or Q field. Offset is
// relative to the start of the heap.
type HeapRef struct {
	Count  int64
	Offset int64
}

func readHeapRef(t TypeCode, b []byte) HeapRef {
	if t == TypeHeap32 {
		return HeapRef{
			Count:  int64(int32(binary.BigEndian.Uint32(b))),
			Offset: int64(int32(binary.BigEndian.Uint32(b[4:]))),
		}
	}
	return HeapRef{
		Count:  int64(binary.BigEndian.Uint64(b)),
		Offset: int64(binary.BigEndian.Uint64(b[8:])),
	}
}

// Resolve returns the payload of ref inside heap. Any reference that does not
// lie entirely inside heap fails with fits.ErrHeapRange.
func (r HeapRef) Resolve(heap []byte, elem TypeCode) ([]byte, error) {
	size := int64(len(heap))
	if r.Count < 0 || r.Offset < 0 || r.Offset > size {
		return nil, r.rangeErr(elem, size)
	}
	// Each element is at least one bit, so this also bounds the product below.
	if r.Count > (size-r.Offset)*8 {
		return nil, r.rangeErr(elem, size)
	}
	n := int64(elem.byteWidth(int(r.Count)))
	if n > size-r.Offset {
		return nil, r.rangeErr(elem, size)
	}
	return heap[r.Offset : r.Offset+n], nil
}

func (r HeapRef) rangeErr(elem TypeCode, size int64) error {
	return fmt.Errorf("%w: %d %s elements at offset %d, heap is %d bytes",
		fits.ErrHeapRange, r.Count, elem, r.Offset, size)
}
