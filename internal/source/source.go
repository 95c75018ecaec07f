// Package source exposes the data sections of a FITS file, either mapped
// into memory or copied into a private buffer.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/samcharles93/fitstable/pkg/fits"
	"github.com/samcharles93/fitstable/pkg/fits/bintable"
	"golang.org/x/sys/unix"
)

// ErrOutOfRange is returned for HDU or row indexes past the end of a file
// or table.
var ErrOutOfRange = errors.New("index out of range")

// Access selects how file bytes are made addressable.
type Access uint8

const (
	// AccessMap maps the file read-only. Suited to storage with cheap
	// random access.
	AccessMap Access = iota
	// AccessCopy reads the file front to back into a private buffer with a
	// single sequential pass. Suited to spinning disks.
	AccessCopy
)

func (a Access) String() string {
	switch a {
	case AccessMap:
		return "map"
	case AccessCopy:
		return "copy"
	default:
		return fmt.Sprintf("access(%d)", a)
	}
}

// ParseStorage maps a storage medium name onto open options: hdd (the
// default) reads a private copy, ssd maps the file, seq maps it with
// sequential read-ahead advice.
func ParseStorage(s string) (Options, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hdd", "copy":
		return Options{Access: AccessCopy}, nil
	case "ssd", "map", "mmap":
		return Options{Access: AccessMap}, nil
	case "seq":
		return Options{Access: AccessMap, Sequential: true}, nil
	default:
		return Options{}, fmt.Errorf("unknown storage %q (want hdd, ssd or seq)", s)
	}
}

type Options struct {
	Access Access
	// Sequential advises the kernel that a mapping will be read front to
	// back.
	Sequential bool
}

// File is an opened FITS file with its HDU layout.
type File struct {
	data    []byte
	hdus    []fits.HDU
	mmapped bool
}

// DataRange locates an HDU's data section and heap, in absolute file
// offsets.
type DataRange struct {
	DataOffset int64
	DataSize   int64
	HeapOffset int64
	HeapSize   int64
}

// Open opens path with the requested access strategy. When mapping fails
// the file is read with the copy strategy instead.
// The returned file must be closed to release any mapping.
func Open(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fits.ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fits.ErrIO, err)
	}
	size64 := stat.Size()
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, fmt.Errorf("%w: file size %d", fits.ErrIO, size64)
	}
	size := int(size64)

	if opts.Access == AccessMap && size > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			if opts.Sequential {
				_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
			}
			sf, parseErr := parse(data, true)
			if parseErr != nil {
				_ = unix.Munmap(data)
				return nil, parseErr
			}
			return sf, nil
		}
	}

	data, err := readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

// OpenReaderAt loads a FITS file from a random-access reader with the copy
// strategy.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: file size %d", fits.ErrIO, size)
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

// readAllAt reads size bytes in one strictly increasing pass.
func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("%w: short read at %d of %d bytes", fits.ErrIO, off, size)
		}
		return nil, fmt.Errorf("%w: %w", fits.ErrIO, err)
	}
	return out, nil
}

func parse(data []byte, mmapped bool) (*File, error) {
	hdus, err := fits.ReadHDUs(data)
	if err != nil {
		return nil, err
	}
	return &File{data: data, hdus: hdus, mmapped: mmapped}, nil
}

// Close releases the file bytes and any mapping. Slices handed out by the
// file must not be used afterwards.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.hdus = nil
	f.mmapped = false
	return err
}

// Mapped reports whether the file bytes are a memory mapping.
func (f *File) Mapped() bool { return f.mmapped }

func (f *File) Size() int64 { return int64(len(f.data)) }

func (f *File) HDUs() []fits.HDU { return slices.Clone(f.hdus) }

func (f *File) HDU(i int) (fits.HDU, error) {
	if f.data == nil {
		return fits.HDU{}, fmt.Errorf("%w: file is closed", fits.ErrIO)
	}
	if i < 0 || i >= len(f.hdus) {
		return fits.HDU{}, fmt.Errorf("%w: hdu %d (file has %d)", ErrOutOfRange, i, len(f.hdus))
	}
	return f.hdus[i], nil
}

// Tables lists the indexes of every BINTABLE HDU.
func (f *File) Tables() []int {
	var out []int
	for _, h := range f.hdus {
		if h.Kind == fits.KindBinTable {
			out = append(out, h.Index)
		}
	}
	return out
}

// DataRange returns the data section of HDU i. The heap is only reported
// for binary tables.
func (f *File) DataRange(i int) (DataRange, error) {
	h, err := f.HDU(i)
	if err != nil {
		return DataRange{}, err
	}
	r := DataRange{DataOffset: h.DataOffset, DataSize: h.DataSize}
	if h.Kind != fits.KindBinTable {
		return r, nil
	}
	d, err := bintable.BuildHDU(h)
	if err != nil {
		return DataRange{}, err
	}
	r.HeapOffset = h.DataOffset + d.HeapOffset
	r.HeapSize = d.HeapSize
	return r, nil
}

// Table returns the binary table stored in HDU i.
func (f *File) Table(i int) (*Table, error) {
	h, err := f.HDU(i)
	if err != nil {
		return nil, err
	}
	d, err := bintable.BuildHDU(h)
	if err != nil {
		return nil, err
	}
	section := f.data[h.DataOffset : h.DataOffset+h.DataSize]
	return &Table{
		Desc:  d,
		table: section[:d.TableSize()],
		heap:  section[d.HeapOffset:],
	}, nil
}
