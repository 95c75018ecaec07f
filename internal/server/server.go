// Package server exposes the FITS tables under a directory over HTTP.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/source"
)

type Config struct {
	// Root is the directory whose FITS files are served.
	Root   string
	Source source.Options
	Scan   scan.Config
	Format rowfmt.Options
	Logger logger.Logger
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg Config
	log logger.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Scan.Logger == nil {
		cfg.Scan.Logger = cfg.Logger
	}
	return &Server{cfg: cfg, log: cfg.Logger}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/files", s.handleListFiles)
	e.GET("/v1/files/:file/hdus", s.handleListHDUs)
	e.GET("/v1/files/:file/hdus/:hdu/rows", s.handleScanTable)
	e.GET("/v1/files/:file/hdus/:hdu/rows/:row", s.handleGetRow)
	if s.cfg.Gatherer != nil {
		h := promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})
		e.GET("/metrics", func(c *echo.Context) error {
			h.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}
}

type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

var fitsExtensions = []string{".fits", ".fit", ".fts"}

func (s *Server) handleListFiles(c *echo.Context) error {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	files := make([]FileInfo, 0, len(entries))
	for _, ent := range entries {
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if ent.IsDir() || !slices.Contains(fitsExtensions, ext) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: ent.Name(), Size: info.Size()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   files,
	})
}

func (s *Server) handleListHDUs(c *echo.Context) error {
	f, err := s.open(c)
	if err != nil {
		return writeFailure(c, err)
	}
	defer func() { _ = f.Close() }()
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"file":   c.Param("file"),
		"data":   f.Describe(),
	})
}

// open resolves the :file parameter inside the served directory.
func (s *Server) open(c *echo.Context) (*source.File, error) {
	name := c.Param("file")
	if name == "" || !filepath.IsLocal(name) || filepath.Base(name) != name {
		return nil, newInvalidRequest("invalid file name " + name)
	}
	path := filepath.Join(s.cfg.Root, name)
	if _, err := os.Stat(path); err != nil {
		return nil, errNotFound{msg: "no such file " + name}
	}
	return source.Open(path, s.cfg.Source)
}
