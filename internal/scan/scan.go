// Package scan converts a binary table into an ordered byte stream by
// decoding row-aligned chunks on a pool of workers.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/pkg/fits"
	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

// DefaultChunkBytes is the amount of row data decoded per chunk.
const DefaultChunkBytes = 10 << 20

// ErrScanCancelled is returned when the caller's context ends a scan.
var ErrScanCancelled = errors.New("scan cancelled")

// Source exposes the bytes of one table. The slices are shared read-only by
// every worker.
type Source interface {
	TableBytes() []byte
	HeapBytes() []byte
}

// ChunkWriter receives formatted chunks in row order. p is only valid for
// the duration of the call.
type ChunkWriter interface {
	WriteChunk(p []byte) error
}

type Config struct {
	ChunkBytes int
	Workers    int
	// Window bounds the chunks decoded but not yet written.
	Window int
	// Header writes the formatter's header before the first row.
	Header  bool
	Logger  logger.Logger
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = DefaultChunkBytes
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Window <= 0 {
		c.Window = 2 * c.Workers
	}
	if c.Window < c.Workers {
		c.Window = c.Workers
	}
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
	return c
}

type chunkResult struct {
	index int
	rows  int64
	buf   *[]byte
	err   error
}

// job is the state shared by one scan's workers.
type job struct {
	desc  *bintable.Descriptor
	table []byte
	heap  []byte
	f     rowfmt.Formatter
	plan  Plan
	m     *Metrics
	bufs  sync.Pool
}

// Scan decodes every row of desc from src, formats it with f and writes the
// output to w in row order. Rows are decoded concurrently in chunks.
//
// The first decode, format or write error stops the scan: every worker is
// cancelled and nothing more is written. Failures while decoding are
// *bintable.RowError values. If ctx ends first the error wraps
// ErrScanCancelled.
func Scan(ctx context.Context, desc *bintable.Descriptor, src Source, f rowfmt.Formatter, w ChunkWriter, cfg Config) error {
	cfg = cfg.withDefaults()
	j, err := newJob(desc, src, f, cfg)
	if err != nil {
		return err
	}
	log := cfg.Logger.With("scan_id", uuid.NewString(), "hdu", desc.HDU)
	cfg.Metrics.scanStarted()
	log.Debug("scan starting",
		"rows", desc.Rows, "chunks", j.plan.Count, "chunk_rows", j.plan.ChunkRows,
		"workers", cfg.Workers, "window", cfg.Window)

	start := time.Now()
	if err := writeHeader(j, w, cfg); err != nil {
		return err
	}
	if err := run(ctx, j, w, cfg); err != nil {
		cfg.Metrics.failed(cause(err))
		log.Warn("scan failed", "err", err, "elapsed", time.Since(start))
		return err
	}
	log.Info("scan complete", "rows", desc.Rows, "chunks", j.plan.Count, "elapsed", time.Since(start))
	return nil
}

// Sequential is Scan with a single worker. Output is identical to Scan for
// any worker count.
func Sequential(ctx context.Context, desc *bintable.Descriptor, src Source, f rowfmt.Formatter, w ChunkWriter, cfg Config) error {
	cfg.Workers = 1
	return Scan(ctx, desc, src, f, w, cfg)
}

func newJob(desc *bintable.Descriptor, src Source, f rowfmt.Formatter, cfg Config) (*job, error) {
	table, heap := src.TableBytes(), src.HeapBytes()
	if int64(len(table)) < desc.TableSize() {
		return nil, fmt.Errorf("%w: table holds %d bytes, %d rows of %d bytes declared",
			fits.ErrMalformedHeader, len(table), desc.Rows, desc.RowWidth)
	}
	return &job{
		desc:  desc,
		table: table,
		heap:  heap,
		f:     f,
		plan:  NewPlan(desc.Rows, desc.RowWidth, cfg.ChunkBytes),
		m:     cfg.Metrics,
	}, nil
}

func writeHeader(j *job, w ChunkWriter, cfg Config) error {
	if !cfg.Header {
		return nil
	}
	hdr, err := j.f.AppendHeader(nil, j.desc)
	if err != nil {
		return fmt.Errorf("format header: %w", err)
	}
	if len(hdr) == 0 {
		return nil
	}
	return w.WriteChunk(hdr)
}

// run is the worker pool; every chunk is decoded by a pool worker. A worker takes a holding slot before it
// takes the next chunk index, so the chunk the writer waits for always
// holds a slot and the window can never fill with later chunks only.
func run(parent context.Context, j *job, w ChunkWriter, cfg Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	slots := make(chan struct{}, cfg.Window)
	results := make(chan chunkResult, cfg.Window)
	var next atomic.Int64
	var wg sync.WaitGroup

	for range min(cfg.Workers, j.plan.Count) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var row bintable.Row
			for ctx.Err() == nil {
				select {
				case slots <- struct{}{}:
				case <-ctx.Done():
					return
				}
				i := int(next.Add(1) - 1)
				if i >= j.plan.Count {
					<-slots
					return
				}
				c := j.plan.Chunk(i)
				buf, err := j.decodeChunk(ctx, c, &row)
				if errors.Is(err, errAborted) {
					return
				}
				select {
				case results <- chunkResult{index: i, rows: c.Rows(), buf: buf, err: err}:
				case <-ctx.Done():
					j.putBuf(buf)
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	order := newReorder(cfg.Window)
	var firstErr error
	for res := range results {
		if firstErr != nil {
			j.putBuf(res.buf)
			continue
		}
		if res.err != nil {
			firstErr = res.err
			cancel()
			continue
		}
		order.add(res)
		for ctx.Err() == nil {
			ready, ok := order.pop()
			if !ok {
				break
			}
			err := w.WriteChunk(*ready.buf)
			if err == nil {
				j.m.chunkWritten(ready.rows, len(*ready.buf))
			}
			j.putBuf(ready.buf)
			<-slots
			if err != nil {
				firstErr = fmt.Errorf("write chunk %d: %w", ready.index, err)
				cancel()
				break
			}
		}
		j.m.pending(order.len())
	}
	order.drain(func(res chunkResult) { j.putBuf(res.buf) })
	j.m.pending(0)

	if firstErr != nil {
		return firstErr
	}
	if order.next < j.plan.Count {
		return fmt.Errorf("%w: %w", ErrScanCancelled, context.Cause(parent))
	}
	return nil
}

// errAborted marks a chunk abandoned because the scan was cancelled.
var errAborted = errors.New("chunk aborted")

// cancelCheckRows is how often a worker polls for cancellation inside a chunk.
const cancelCheckRows = 4096

func (j *job) decodeChunk(ctx context.Context, c Chunk, row *bintable.Row) (*[]byte, error) {
	start := time.Now()
	buf := j.getBuf()
	out := (*buf)[:0]
	var err error
	for i := c.Start; i < c.End; i++ {
		if (i-c.Start)%cancelCheckRows == 0 && ctx.Err() != nil {
			j.putBuf(buf)
			return nil, errAborted
		}
		if err = j.desc.DecodeRowInto(row, j.desc.Row(j.table, i), j.heap); err != nil {
			j.putBuf(buf)
			return nil, bintable.WrapRowError(j.desc.HDU, i, err)
		}
		if out, err = j.f.AppendRow(out, j.desc, row); err != nil {
			j.putBuf(buf)
			return nil, &bintable.RowError{HDU: j.desc.HDU, Row: i, Err: err}
		}
	}
	*buf = out
	j.m.chunkDecoded(time.Since(start))
	return buf, nil
}

func (j *job) getBuf() *[]byte {
	if b, ok := j.bufs.Get().(*[]byte); ok {
		return b
	}
	b := make([]byte, 0, 64<<10)
	return &b
}

func (j *job) putBuf(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]
	j.bufs.Put(b)
}

func cause(err error) string {
	var re *bintable.RowError
	switch {
	case errors.Is(err, ErrScanCancelled):
		return "cancelled"
	case errors.As(err, &re):
		return "decode"
	default:
		return "write"
	}
}
