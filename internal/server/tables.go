package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/sink"
)

// errorTrailer reports a scan that failed after the response was committed.
const errorTrailer = "X-Fitstable-Error"

func (s *Server) handleScanTable(c *echo.Context) error {
	hdu, err := strconv.Atoi(c.Param("hdu"))
	if err != nil || hdu < 0 {
		return writeFailure(c, newInvalidRequest("invalid hdu "+c.Param("hdu")))
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	f, err := rowfmt.ByName(format, s.cfg.Format)
	if err != nil {
		return writeFailure(c, newInvalidRequest(err.Error()))
	}
	comp, err := sink.ParseCompression(c.QueryParam("compression"))
	if err != nil {
		return writeFailure(c, newInvalidRequest(err.Error()))
	}

	file, err := s.open(c)
	if err != nil {
		return writeFailure(c, err)
	}
	defer func() { _ = file.Close() }()
	tbl, err := file.Table(hdu)
	if err != nil {
		return writeFailure(c, err)
	}

	w, err := newStreamWriter(c, format, comp, s.log)
	if err != nil {
		return writeFailure(c, err)
	}
	cfg := s.cfg.Scan
	cfg.Header = c.QueryParam("header") != "false"
	err = scan.Scan(c.Request().Context(), tbl.Desc, tbl, f, w, cfg)
	if err != nil {
		if !w.started {
			_ = w.sink.Abort()
			return writeFailure(c, err)
		}
		s.log.Warn("table stream aborted", "file", c.Param("file"), "hdu", hdu, "err", err)
		c.Response().Header().Set(errorTrailer, err.Error())
		return nil
	}
	w.start()
	return w.sink.Close()
}

func (s *Server) handleGetRow(c *echo.Context) error {
	hdu, err := strconv.Atoi(c.Param("hdu"))
	if err != nil || hdu < 0 {
		return writeFailure(c, newInvalidRequest("invalid hdu "+c.Param("hdu")))
	}
	row, err := strconv.ParseInt(c.Param("row"), 10, 64)
	if err != nil {
		return writeFailure(c, newInvalidRequest("invalid row "+c.Param("row")))
	}

	file, err := s.open(c)
	if err != nil {
		return writeFailure(c, err)
	}
	defer func() { _ = file.Close() }()
	tbl, err := file.Table(hdu)
	if err != nil {
		return writeFailure(c, err)
	}
	r, err := tbl.DecodeRow(row)
	if err != nil {
		return writeFailure(c, err)
	}
	body, err := rowfmt.NewJSONLines(s.cfg.Format).AppendRow(nil, tbl.Desc, &r)
	if err != nil {
		return writeFailure(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(http.StatusOK)
	_, err = res.Write(body)
	return err
}

func contentType(format string) string {
	switch rowfmt.Extension(format) {
	case "jsonl":
		return "application/x-ndjson"
	case "cbor":
		return "application/cbor-seq"
	default:
		return "text/csv; charset=utf-8"
	}
}
