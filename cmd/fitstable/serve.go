package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fitstable/internal/logger"
	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		root        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the FITS tables of a directory over HTTP",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "root",
				Usage:       "directory of FITS files to serve",
				Value:       ".",
				Destination: &root,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		}, scanFlags()...), outputFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr, &root)
			log := logger.FromContext(ctx)

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

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			scfg.Metrics = scan.NewMetrics(reg)

			srv := server.NewServer(server.Config{
				Root:     root,
				Source:   srcOpts,
				Scan:     scfg,
				Format:   fopts,
				Logger:   log,
				Gatherer: reg,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			srv.Register(e)
			log.Info("starting server", "address", addr, "root", root)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(s *http.Server) error {
					s.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
