// Package sink writes ordered scan output to a file or stream, optionally
// compressed and digested.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/pkg/fits"
)

// DefaultBufferSize is the write buffer in front of the destination.
const DefaultBufferSize = 1 << 20

// Compression is the stream compression applied to the output.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Extension is the file suffix conventionally added for c.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd or lz4)", name)
	}
}

type Options struct {
	Compression Compression
	// Digest computes a BLAKE3 digest of the uncompressed output.
	Digest     bool
	BufferSize int
	Logger     logger.Logger
}

// Summary describes what a sink has written. Bytes and Digest cover the
// output before compression.
type Summary struct {
	Bytes  int64
	Digest string
}

// Sink is the single owner of an output destination. It is not safe for
// concurrent use; the scan coordinator is its only writer.
type Sink struct {
	buf  *bufio.Writer
	enc  io.WriteCloser
	out  io.Writer
	hash *blake3.Hasher
	n    int64
	log  logger.Logger

	// file is the destination when the sink owns one. Output goes to tmp
	// and is renamed to path on a successful Close.
	file   *os.File
	tmp    string
	path   string
	closed bool
}

// New wraps w. w is flushed but never closed by the sink.
func New(w io.Writer, opts Options) (*Sink, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	s := &Sink{buf: bufio.NewWriterSize(w, opts.BufferSize), log: opts.Logger}
	s.out = s.buf
	switch opts.Compression {
	case CompressionNone:
	case CompressionZstd:
		enc, err := zstd.NewWriter(s.buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		s.enc, s.out = enc, enc
	case CompressionLZ4:
		enc := lz4.NewWriter(s.buf)
		s.enc, s.out = enc, enc
	default:
		return nil, fmt.Errorf("unsupported compression %s", opts.Compression)
	}
	if opts.Digest {
		s.hash = blake3.New()
	}
	return s, nil
}

// FileMode is the permission of files written by Create.
const FileMode os.FileMode = 0o644

// Create opens a sink on path. "" and "-" write to standard output. Files
// are written under a temporary name next to path and only appear at path
// once Close succeeds.
func Create(path string, opts Options) (*Sink, error) {
	if path == "" || path == "-" {
		return New(os.Stdout, opts)
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.partial")
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", fits.ErrIO, path, err)
	}
	// CreateTemp is owner-only; committed outputs get regular file permissions.
	if err := f.Chmod(FileMode); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("%w: chmod %s: %v", fits.ErrIO, path, err)
	}
	s, err := New(f, opts)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	s.file, s.tmp, s.path = f, f.Name(), path
	return s, nil
}

// With runs fn with a sink on path. The sink is closed on every path: it is
// committed when fn succeeds and discarded when fn fails.
func With(path string, opts Options, fn func(*Sink) error) (Summary, error) {
	s, err := Create(path, opts)
	if err != nil {
		return Summary{}, err
	}
	if err := fn(s); err != nil {
		return s.Summary(), errors.Join(err, s.Abort())
	}
	if err := s.Close(); err != nil {
		return s.Summary(), err
	}
	return s.Summary(), nil
}

// WriteChunk writes p in full.
func (s *Sink) WriteChunk(p []byte) error {
	_, err := s.Write(p)
	return err
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: write to closed sink", fits.ErrIO)
	}
	n, err := s.out.Write(p)
	s.n += int64(n)
	if s.hash != nil {
		_, _ = s.hash.Write(p[:n])
	}
	if err != nil {
		return n, fmt.Errorf("%w: %v", fits.ErrIO, err)
	}
	return n, nil
}

// Flush pushes buffered output to the destination. Compressed streams emit
// a flush block so a reader can decode everything written so far.
func (s *Sink) Flush() error {
	if s.closed {
		return nil
	}
	type flusher interface{ Flush() error }
	if f, ok := s.enc.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: %v", fits.ErrIO, err)
		}
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("%w: %v", fits.ErrIO, err)
	}
	return nil
}

// Close finishes the compressed stream, flushes and, for sinks made by
// Create, moves the output to its final path. Close is idempotent.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	err := s.finish()
	s.closed = true
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: %v", fits.ErrIO, cerr))
		}
		if err == nil {
			if rerr := os.Rename(s.tmp, s.path); rerr != nil {
				err = fmt.Errorf("%w: %v", fits.ErrIO, rerr)
			}
		}
		if err != nil {
			_ = os.Remove(s.tmp)
			return fmt.Errorf("%s: %w", s.path, err)
		}
	}
	if err != nil {
		return err
	}
	s.log.Debug("sink closed", "path", s.path, "bytes", s.n, "digest", s.digest())
	return nil
}

// Abort releases the destination without committing it: a file sink
// removes its partial output. Stream sinks are flushed like Close.
func (s *Sink) Abort() error {
	if s.closed {
		return nil
	}
	if s.file == nil {
		return s.Close()
	}
	s.closed = true
	err := errors.Join(s.closeEncoder(), s.file.Close(), os.Remove(s.tmp))
	if err != nil {
		err = fmt.Errorf("%w: discard %s: %w", fits.ErrIO, s.path, err)
	}
	s.log.Debug("sink discarded", "path", s.path, "bytes", s.n)
	return err
}

func (s *Sink) finish() error {
	if err := s.closeEncoder(); err != nil {
		return fmt.Errorf("%w: %v", fits.ErrIO, err)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("%w: %v", fits.ErrIO, err)
	}
	return nil
}

func (s *Sink) closeEncoder() error {
	if s.enc == nil {
		return nil
	}
	return s.enc.Close()
}

func (s *Sink) digest() string {
	if s.hash == nil {
		return ""
	}
	return fmt.Sprintf("%x", s.hash.Sum(nil))
}

func (s *Sink) Summary() Summary {
	return Summary{Bytes: s.n, Digest: s.digest()}
}
