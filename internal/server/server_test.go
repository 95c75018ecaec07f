package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/fitstable/internal/fitstest"
	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/source"
)

func newTestEcho(t *testing.T, workers int) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "events.fits"), fitstest.File(fitstest.Synthetic(10)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a table"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	bad := fitstest.Synthetic(4)
	copy(bad.RowData()[2*21+13:], fitstest.P(2, 1<<20))
	if err := os.WriteFile(filepath.Join(dir, "bad.fits"), fitstest.File(bad), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reg := prometheus.NewRegistry()
	server := NewServer(Config{
		Root:     dir,
		Source:   source.Options{Access: source.AccessCopy},
		Scan:     scan.Config{Workers: workers, ChunkBytes: 42, Metrics: scan.NewMetrics(reg)},
		Format:   rowfmt.DefaultOptions(),
		Gatherer: reg,
	})
	e := echo.New()
	server.Register(e)
	return e
}

func get(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var body struct {
		Error ResponseError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestEcho(t, 2), "/v1/files")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data []FileInfo `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Data[0].Name != "bad.fits" || body.Data[1].Name != "events.fits" {
		t.Fatalf("files mismatch: got %+v", body.Data)
	}
}

func TestListHDUs(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestEcho(t, 2), "/v1/files/events.fits/hdus")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data []source.HDUInfo `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Data[1].Table == nil || body.Data[1].Table.Rows != 10 {
		t.Fatalf("hdus mismatch: got %+v", body.Data)
	}
}

func TestScanTableCSV(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestEcho(t, 2), "/v1/files/events.fits/hdus/1/rows")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type mismatch: got %q", ct)
	}
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	if len(lines) != 11 || lines[0] != "ID,FLUX,FLAG,SPEC" || lines[4] != `3,1.5,false,"[3, 3, 3]"` {
		t.Fatalf("csv mismatch: got %q", lines)
	}
}

func TestScanTableJSONLinesZstd(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestEcho(t, 2), "/v1/files/events.fits/hdus/1/rows?format=jsonl&compression=zstd")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if enc := rec.Header().Get("Content-Encoding"); enc != "zstd" {
		t.Fatalf("content encoding mismatch: got %q", enc)
	}
	dec, err := zstd.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	plain, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(plain), "\n"), "\n")
	if len(lines) != 10 || lines[3] != `{"ID":3,"FLUX":1.5,"FLAG":false,"SPEC":[3,3,3]}` {
		t.Fatalf("jsonl mismatch: got %q", lines)
	}
}

func TestScanTableErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 2)
	tests := []struct {
		path    string
		status  int
		errType string
	}{
		{"/v1/files/events.fits/hdus/1/rows?format=xml", http.StatusBadRequest, "invalid_request_error"},
		{"/v1/files/events.fits/hdus/x/rows", http.StatusBadRequest, "invalid_request_error"},
		{"/v1/files/missing.fits/hdus/1/rows", http.StatusNotFound, "not_found_error"},
		{"/v1/files/../hdus/1/rows", http.StatusBadRequest, "invalid_request_error"},
		{"/v1/files/events.fits/hdus/0/rows", http.StatusUnprocessableEntity, "format_error"},
		{"/v1/files/events.fits/hdus/7/rows", http.StatusNotFound, "not_found_error"},
		{"/v1/files/events.fits/hdus/1/rows/10", http.StatusNotFound, "not_found_error"},
	}
	for _, tt := range tests {
		rec := get(t, e, tt.path)
		if rec.Code != tt.status {
			t.Fatalf("%s: status mismatch: got %d want %d body=%s", tt.path, rec.Code, tt.status, rec.Body.String())
		}
		if got := decodeError(t, rec); got.Type != tt.errType {
			t.Fatalf("%s: error type mismatch: got %q want %q", tt.path, got.Type, tt.errType)
		}
	}
}

func TestScanTableDecodeFailure(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 1)
	rec := get(t, e, "/v1/files/bad.fits/hdus/1/rows/2")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeError(t, rec)
	if got.Type != "decode_error" || got.Row == nil || *got.Row != 2 || got.Column != "SPEC" {
		t.Fatalf("error mismatch: got %+v", got)
	}

	// Row 2 lives in the second chunk: the first is committed before the
	// failure, so the error can only be reported in the trailer.
	rec = get(t, e, "/v1/files/bad.fits/hdus/1/rows?header=false")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != "0,0.0,true,\n1,0.5,false,\"[1]\"\n" {
		t.Fatalf("partial body mismatch: got %q", body)
	}
	if trailer := rec.Result().Trailer.Get(errorTrailer); !strings.Contains(trailer, "row 2") {
		t.Fatalf("trailer mismatch: got %q", trailer)
	}
}

func TestGetRow(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestEcho(t, 2), "/v1/files/events.fits/hdus/1/rows/3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	want := `{"ID":3,"FLUX":1.5,"FLAG":false,"SPEC":[3,3,3]}` + "\n"
	if rec.Body.String() != want {
		t.Fatalf("row mismatch: got %q want %q", rec.Body.String(), want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 2)
	if rec := get(t, e, "/v1/files/events.fits/hdus/1/rows"); rec.Code != http.StatusOK {
		t.Fatalf("scan status: got %d", rec.Code)
	}
	rec := get(t, e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fitstable_scan_rows_total 10") {
		t.Fatalf("metrics body missing row counter:\n%s", rec.Body.String())
	}
}
