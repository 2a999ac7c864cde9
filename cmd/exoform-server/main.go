package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/philpax/exoform-sub000/pkg/server"
)

const ServerVersion = "0.1.0"

func main() {
	usage := `Exoform collaborative modelling server.

Rooms are persisted as JSON snapshots next to <filename> unless --store
selects redis://host:port/db or sqlite:<path>.

Usage:
    exoform-server [--host=<host>] [--port=<port>] [--ws=<addr>] [--metrics=<addr>]
        [--store=<uri>] [--seed=<script>] [--save-period=<dur>] [--verbose=<n>]
        [<filename>]
    exoform-server -h | --help
    exoform-server --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --host=<host>          Address to listen on [default: localhost].
    --port=<port>          TCP port [default: 23421].
    --ws=<addr>            Also accept WebSocket clients on this address.
    --metrics=<addr>       Serve Prometheus metrics on this address.
    --store=<uri>          Snapshot store uri.
    --seed=<script>        Scene script new rooms start from.
    --save-period=<dur>    Snapshot interval [default: 5s].
    --verbose=<n>          Log verbosity [default: 0].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ServerVersion)
	if err != nil {
		panic(err)
	}

	verbose, _ := opts.String("--verbose")
	flag.Set("logtostderr", "true")
	flag.Set("v", verbose)
	defer glog.Flush()

	cfg, err := configFromOpts(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	srv, err := server.New(cfg)
	if err != nil {
		glog.Exitf("starting server: %v", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		glog.Errorf("server: %v", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Info("shut down cleanly")
}

func configFromOpts(opts docopt.Opts) (server.Config, error) {
	cfg := server.DefaultConfig()
	cfg.Host, _ = opts.String("--host")
	port, err := opts.Int("--port")
	if err != nil {
		return cfg, fmt.Errorf("--port: %w", err)
	}
	cfg.Port = port

	cfg.WebSocketAddr, _ = opts.String("--ws")
	cfg.MetricsAddr, _ = opts.String("--metrics")
	cfg.StoreURI, _ = opts.String("--store")
	cfg.SeedScript, _ = opts.String("--seed")
	if filename, err := opts.String("<filename>"); err == nil && filename != "" {
		cfg.SnapshotPath = filename
	}

	period, _ := opts.String("--save-period")
	if cfg.SavePeriod, err = time.ParseDuration(period); err != nil {
		return cfg, fmt.Errorf("--save-period: %w", err)
	}
	return cfg, cfg.Validate()
}
