package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fitstable/internal/source"
)

func infoCmd() *cli.Command {
	var (
		asJSON  bool
		columns bool
	)

	return &cli.Command{
		Name:      "info",
		Usage:     "Print the HDU structure of a FITS file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print as JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "columns", Aliases: []string{"c"}, Usage: "list the columns of each table", Destination: &columns},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: missing input FITS file", 1)
			}
			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", path, err), 1)
			}
			file, err := source.Open(path, source.Options{Access: source.AccessMap})
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer func() { _ = file.Close() }()

			out := stdout(cmd)
			hdus := file.Describe()
			if asJSON {
				b, err := json.MarshalIndent(map[string]any{
					"file": path,
					"size": stat.Size(),
					"hdus": hdus,
				}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s\n", b)
				return err
			}
			printInfo(out, path, stat.Size(), hdus, columns)
			return nil
		},
	}
}

func printInfo(w io.Writer, path string, size int64, hdus []source.HDUInfo, columns bool) {
	_, _ = fmt.Fprintf(w, "File: %s (%s, %d HDUs)\n", path, formatBytes(uint64(size)), len(hdus))
	for _, h := range hdus {
		name := h.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "\nHDU %d  %-8s  %s\n", h.Index, h.Kind, name)
		_, _ = fmt.Fprintf(w, "  header @%d, data @%d (%s)\n", h.HeaderOffset, h.DataOffset, formatBytes(uint64(h.DataSize)))
		if h.Error != "" {
			_, _ = fmt.Fprintf(w, "  error: %s\n", h.Error)
			continue
		}
		t := h.Table
		if t == nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %d rows x %d bytes, %d columns", t.Rows, t.RowWidth, len(t.Columns))
		if t.HeapSize > 0 {
			_, _ = fmt.Fprintf(w, ", heap @+%d (%s)", t.HeapOffset, formatBytes(uint64(t.HeapSize)))
		}
		_, _ = fmt.Fprintln(w)
		if !columns {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %4s  %-16s  %-10s  %-6s  %6s  %s\n", "#", "NAME", "TFORM", "TYPE", "OFFSET", "UNIT")
		for _, c := range t.Columns {
			_, _ = fmt.Fprintf(w, "  %4d  %-16s  %-10s  %-6s  %6d  %s\n", c.Index+1, c.Name, c.TForm, c.Type, c.Offset, c.Unit)
		}
	}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
