package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fitstable/internal/rowfmt"
	"github.com/samcharles93/fitstable/internal/source"
)

func rowCmd() *cli.Command {
	var hdu int64

	return &cli.Command{
		Name:      "row",
		Usage:     "Decode single rows of a binary table as JSON lines",
		ArgsUsage: "FILE ROW...",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "hdu",
				Usage:       "table HDU (-1 = first binary table)",
				Value:       -1,
				Destination: &hdu,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return cli.Exit("error: usage: fitstable row FILE ROW...", 1)
			}
			rows := make([]int64, 0, len(args)-1)
			for _, a := range args[1:] {
				r, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: invalid row %q", a), 1)
				}
				rows = append(rows, r)
			}

			file, err := source.Open(args[0], source.Options{Access: source.AccessMap})
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer func() { _ = file.Close() }()

			idx := int(hdu)
			if idx < 0 {
				tables := file.Tables()
				if len(tables) == 0 {
					return fmt.Errorf("%s has no binary table", args[0])
				}
				idx = tables[0]
			}
			tbl, err := file.Table(idx)
			if err != nil {
				return err
			}

			f := rowfmt.NewJSONLines(rowfmt.DefaultOptions())
			var buf []byte
			for _, r := range rows {
				row, err := tbl.DecodeRow(r)
				if err != nil {
					return err
				}
				if buf, err = f.AppendRow(buf, tbl.Desc, &row); err != nil {
					return err
				}
			}
			_, err = stdout(cmd).Write(buf)
			return err
		},
	}
}
