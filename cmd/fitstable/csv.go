package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/sink"
	"github.com/samcharles93/fitstable/internal/source"
)

func csvCmd() *cli.Command {
	var (
		outPath     string
		hdu         int64
		compression string
		digest      bool
	)

	return &cli.Command{
		Name:      "csv",
		Aliases:   []string{"convert"},
		Usage:     "Convert the binary tables of a FITS file",
		ArgsUsage: "FILE",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output file; later tables go to <out>.<hdu>.<ext> (default: stdout)",
				Destination: &outPath,
			},
			&cli.Int64Flag{
				Name:        "hdu",
				Usage:       "convert only this HDU (-1 = every binary table)",
				Value:       -1,
				Destination: &hdu,
			},
			&cli.StringFlag{
				Name:        "compression",
				Aliases:     []string{"z"},
				Usage:       "compress the output (none, zstd, lz4)",
				Value:       "none",
				Destination: &compression,
			},
			&cli.BoolFlag{
				Name:        "digest",
				Usage:       "print the BLAKE3 digest of each output to stderr",
				Destination: &digest,
			},
		}, scanFlags()...), outputFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyScanConfig(cmd, LoadConfig())
			log := logger.FromContext(ctx)

			in := cmd.Args().First()
			if in == "" {
				return cli.Exit("error: missing input FITS file", 1)
			}
			srcOpts, err := sourceOptions()
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			scfg, err := scanConfig(log)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			fopts, err := formatOptions()
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			f, err := rowfmt.ByName(format, fopts)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			comp, err := sink.ParseCompression(compression)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}

			file, err := source.Open(in, srcOpts)
			if err != nil {
				return fmt.Errorf("open %s: %w", in, err)
			}
			defer func() { _ = file.Close() }()

			tables := file.Tables()
			if hdu >= 0 {
				tables = []int{int(hdu)}
			}
			if len(tables) == 0 {
				return fmt.Errorf("%s has no binary table", in)
			}
			log.Debug("converting", "file", in, "tables", tables, "access", srcOpts.Access, "mapped", file.Mapped())

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			for i, h := range tables {
				tbl, err := file.Table(h)
				if err != nil {
					return err
				}
				path := tableOutputPath(outPath, h, i == 0, format)
				sum, err := sink.With(path, sink.Options{Compression: comp, Digest: digest, Logger: log},
					func(s *sink.Sink) error {
						return scan.Scan(ctx, tbl.Desc, tbl, f, s, scfg)
					})
				if err != nil {
					return err
				}
				log.Info("table converted", "hdu", h, "rows", tbl.Desc.Rows, "out", displayPath(path), "bytes", sum.Bytes)
				if digest {
					_, _ = fmt.Fprintf(os.Stderr, "%s  %s\n", sum.Digest, displayPath(path))
				}
			}
			return nil
		},
	}
}

// tableOutputPath names the output of one table. The first table goes to
// out itself; later ones get the HDU index inserted before the extension.
func tableOutputPath(out string, hdu int, first bool, format string) string {
	if out == "" || out == "-" || first {
		return out
	}
	ext := filepath.Ext(out)
	if ext == "" {
		return out + "." + strconv.Itoa(hdu) + "." + rowfmt.Extension(format)
	}
	return strings.TrimSuffix(out, ext) + "." + strconv.Itoa(hdu) + ext
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "<stdout>"
	}
	return path
}
