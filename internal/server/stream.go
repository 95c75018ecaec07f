package server

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/sink"
)

// streamWriter hands scan output to an HTTP response, flushing after every
// chunk. Headers are only committed with the first chunk so a scan that
// fails early can still answer with an error status.
type streamWriter struct {
	res     http.ResponseWriter
	flusher func()
	sink    *sink.Sink
	header  func(http.Header)
	started bool
}

func newStreamWriter(c *echo.Context, format string, comp sink.Compression, log logger.Logger) (*streamWriter, error) {
	res := c.Response()
	out, err := sink.New(res, sink.Options{Compression: comp, BufferSize: 64 << 10, Logger: log})
	if err != nil {
		return nil, err
	}
	flush := func() {}
	if f, ok := res.(interface{ Flush() }); ok {
		flush = f.Flush
	}
	return &streamWriter{
		res:     res,
		flusher: flush,
		sink:    out,
		header: func(h http.Header) {
			h.Set(echo.HeaderContentType, contentType(format))
			switch comp {
			case sink.CompressionZstd:
				h.Set("Content-Encoding", "zstd")
			case sink.CompressionLZ4:
				h.Set(echo.HeaderContentType, "application/x-lz4")
			}
			h.Set("Cache-Control", "no-cache")
			h.Set("Trailer", errorTrailer)
		},
	}, nil
}

func (w *streamWriter) start() {
	if w.started {
		return
	}
	w.started = true
	w.header(w.res.Header())
	w.res.WriteHeader(http.StatusOK)
}

func (w *streamWriter) WriteChunk(p []byte) error {
	w.start()
	if err := w.sink.WriteChunk(p); err != nil {
		return err
	}
	if err := w.sink.Flush(); err != nil {
		return err
	}
	w.flusher()
	return nil
}
