package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/source"
)

var (
	logLevel  string
	logFormat string
	verbosity int
	debug     bool

	parallel    int64
	chunkSizeMB float64
	ssd         bool
	seq         bool
	// storage is the config file's storage value, used when neither
	// --ssd nor --seq is given.
	storage string

	noHeader  bool
	format    string
	delimiter string
	precision int64
	quoteAll  bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error); overrides -v",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "more logging; repeat for debug",
			Config:  cli.BoolConfig{Count: &verbosity},
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// scanFlags select how table bytes are read and decoded.
func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "parallel",
			Aliases:     []string{"p"},
			Usage:       "decode with N workers (0 = all CPUs)",
			Destination: &parallel,
		},
		&cli.FloatFlag{
			Name:        "chunk-size-mb",
			Usage:       "table bytes decoded per chunk",
			Value:       float64(scan.DefaultChunkBytes) / (1 << 20),
			Destination: &chunkSizeMB,
		},
		&cli.BoolFlag{
			Name:        "ssd",
			Aliases:     []string{"s"},
			Usage:       "data is on an SSD: map the file instead of copying it with one sequential read",
			Destination: &ssd,
		},
		&cli.BoolFlag{
			Name:        "seq",
			Aliases:     []string{"q"},
			Usage:       "map the file with sequential read-ahead advice (cold HDD cache, no heap)",
			Destination: &seq,
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "output format (csv, jsonl, cbor)",
			Value:       "csv",
			Destination: &format,
		},
		&cli.BoolFlag{
			Name:        "no-header",
			Aliases:     []string{"n"},
			Usage:       "do not write the header line",
			Destination: &noHeader,
		},
		&cli.StringFlag{
			Name:        "delimiter",
			Aliases:     []string{"d"},
			Usage:       "CSV field delimiter (one byte, \\t for tab)",
			Value:       ",",
			Destination: &delimiter,
		},
		&cli.Int64Flag{
			Name:        "precision",
			Usage:       "decimals written for floats (-1 = shortest exact)",
			Value:       -1,
			Destination: &precision,
		},
		&cli.BoolFlag{
			Name:        "quote-all",
			Usage:       "quote every CSV field",
			Destination: &quoteAll,
		},
	}
}

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := LoadConfig()
	applyLogConfig(cmd, cfg)

	f, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, err
	}
	level := logger.FromVerbosity(verbosity)
	if logLevel != "" {
		level = logger.ParseLevel(logLevel)
	}
	if debug {
		level = logger.ParseLevel("debug")
	}
	return logger.WithContext(ctx, logger.Build(os.Stderr, f, level)), nil
}

func sourceOptions() (source.Options, error) {
	name := storage
	switch {
	case ssd && seq:
		return source.Options{}, fmt.Errorf("--ssd and --seq are mutually exclusive")
	case ssd:
		name = "ssd"
	case seq:
		name = "seq"
	}
	return source.ParseStorage(name)
}

func scanConfig(log logger.Logger) (scan.Config, error) {
	if chunkSizeMB <= 0 {
		return scan.Config{}, fmt.Errorf("--chunk-size-mb must be positive, got %g", chunkSizeMB)
	}
	if parallel < 0 {
		return scan.Config{}, fmt.Errorf("--parallel must not be negative, got %d", parallel)
	}
	return scan.Config{
		ChunkBytes: int(chunkSizeMB * (1 << 20)),
		Workers:    int(parallel),
		Header:     !noHeader,
		Logger:     log,
	}, nil
}

func formatOptions() (rowfmt.Options, error) {
	opts := rowfmt.DefaultOptions()
	d := delimiter
	if d == `\t` || d == "tab" {
		d = "\t"
	}
	if len(d) != 1 {
		return opts, fmt.Errorf("--delimiter must be a single byte, got %q", delimiter)
	}
	opts.Delimiter = d[0]
	opts.Precision = int(precision)
	opts.QuoteAll = quoteAll
	return opts, nil
}
