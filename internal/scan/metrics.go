package scan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of table scans. A nil *Metrics
// records nothing.
type Metrics struct {
	Scans         prometheus.Counter
	Rows          prometheus.Counter
	Bytes         prometheus.Counter
	Chunks        prometheus.Counter
	Errors        *prometheus.CounterVec
	ChunkDuration prometheus.Histogram
	Pending       prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	scans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitstable_scans_total",
		Help: "Total table scans started",
	})

	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitstable_scan_rows_total",
		Help: "Total rows decoded and written",
	})

	bytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitstable_scan_output_bytes_total",
		Help: "Total formatted bytes handed to the sink",
	})

	chunks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitstable_scan_chunks_total",
		Help: "Total chunks written in row order",
	})

	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitstable_scan_errors_total",
		Help: "Total failed scans by cause",
	}, []string{"cause"})

	chunkDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fitstable_scan_chunk_decode_seconds",
		Help:    "Time to decode and format one chunk",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fitstable_scan_pending_chunks",
		Help: "Decoded chunks waiting for an earlier chunk before they can be written",
	})

	reg.MustRegister(scans, rows, bytes, chunks, errors, chunkDuration, pending)

	return &Metrics{
		Scans:         scans,
		Rows:          rows,
		Bytes:         bytes,
		Chunks:        chunks,
		Errors:        errors,
		ChunkDuration: chunkDuration,
		Pending:       pending,
	}
}

func (m *Metrics) scanStarted() {
	if m != nil {
		m.Scans.Inc()
	}
}

func (m *Metrics) chunkDecoded(d time.Duration) {
	if m != nil {
		m.ChunkDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) chunkWritten(rows int64, n int) {
	if m != nil {
		m.Chunks.Inc()
		m.Rows.Add(float64(rows))
		m.Bytes.Add(float64(n))
	}
}

func (m *Metrics) pending(n int) {
	if m != nil {
		m.Pending.Set(float64(n))
	}
}

func (m *Metrics) failed(cause string) {
	if m != nil {
		m.Errors.WithLabelValues(cause).Inc()
	}
}
