// Copyright (c) 2026 The Echoloop Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command echoloop runs a discard or echo TCP server, or probes one.
//
//	echoloop serve --port 6050 --mode echo
//	echoloop probe --addr 127.0.0.1:6050 --mode echo --clients 64
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echoloop/echoloop"
	"github.com/echoloop/echoloop/internal/config"
	"github.com/echoloop/echoloop/pkg/logging"
	"github.com/echoloop/echoloop/pkg/probe"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	stopTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: echoloop <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  serve   run a discard or echo server")
	fmt.Fprintln(w, "  probe   check a running server with concurrent clients")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "run 'echoloop <command> -h' for the flags of a command")
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "probe":
		return runProbe(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		usage(stderr)
		return exitOK
	}
	fmt.Fprintf(stderr, "echoloop: unknown command %q\n", args[0])
	usage(stderr)
	return exitUsage
}

func serve(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML configuration file")
		port       = fs.Int("port", config.DefaultPort, "TCP port to listen on")
		host       = fs.String("host", echoloop.DefaultBindHost, "local address to bind")
		mode       = fs.String("mode", echoloop.ModeEcho.String(), "handler: discard or echo")
		backlog    = fs.Int("backlog", echoloop.DefaultBacklog, "listen backlog")
		keepAlive  = fs.Bool("keepalive", true, "enable TCP keep-alive on accepted connections")
		multicore  = fs.Bool("multicore", false, "run one event-loop per CPU")
		loops      = fs.Int("loops", 0, "number of event-loops, overrides --multicore")
		lb         = fs.String("lb", echoloop.RoundRobin.String(), "load balancing: round-robin, least-connections or source-addr-hash")
		logLevel   = fs.String("log-level", "", "log level: debug, info, warn or error")
		logFile    = fs.String("log-file", "", "write logs to this file with rotation instead of the console")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "echoloop serve: unexpected arguments %v\n", fs.Args())
		return exitUsage
	}

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg = config.Default()
		err = cfg.ApplyEnv()
	}
	if err != nil {
		fmt.Fprintf(stderr, "echoloop serve: %v\n", err)
		return exitFailure
	}

	// Flags given on the command line win over the file and the environment.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "host":
			cfg.Host = *host
		case "mode":
			if err := cfg.Mode.UnmarshalText([]byte(*mode)); err != nil {
				flagErr = err
			}
		case "backlog":
			cfg.Backlog = *backlog
		case "keepalive":
			cfg.KeepAlive = *keepAlive
		case "multicore":
			cfg.Multicore = *multicore
		case "loops":
			cfg.EventLoops = *loops
		case "lb":
			cfg.LoadBalancing = *lb
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		fmt.Fprintf(stderr, "echoloop serve: %v\n", flagErr)
		return exitFailure
	}

	logger, flush, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(stderr, "echoloop serve: %v\n", err)
		return exitFailure
	}
	defer flush() //nolint:errcheck

	factory, err := echoloop.NewHandlerFactory(cfg.Mode, logger)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	options, err := cfg.Options(logger)
	if err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}

	ln, err := echoloop.Start(cfg.Port, factory, options...)
	if err != nil {
		fmt.Fprintf(stderr, "echoloop serve: %v\n", err)
		return exitFailure
	}
	logger.Infof("%s server started on %s", cfg.Mode, ln.Addr())

	select {
	case <-ctx.Done():
		logger.Infof("received shutdown signal, stopping")
	case <-ln.Done():
		logger.Infof("server stopped by a handler")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err = ln.Stop(stopCtx); err != nil {
		logger.Warnf("connections did not close in time: %v", err)
	}
	logger.Infof("server on port %d stopped", cfg.Port)
	return exitOK
}

func runProbe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		addr     = fs.String("addr", fmt.Sprintf("127.0.0.1:%d", config.DefaultPort), "server address")
		mode     = fs.String("mode", echoloop.ModeEcho.String(), "expected server behavior: discard or echo")
		clients  = fs.Int("clients", probe.DefaultClients, "number of concurrent clients")
		size     = fs.Int("size", probe.DefaultSize, "payload size per client in bytes")
		timeout  = fs.Duration("timeout", probe.DefaultTimeout, "time limit per client")
		logLevel = fs.String("log-level", "warn", "log level: debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	m, err := echoloop.ParseMode(*mode)
	if err != nil {
		fmt.Fprintf(stderr, "echoloop probe: %v\n", err)
		return exitUsage
	}
	lvl, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "echoloop probe: %v\n", err)
		return exitUsage
	}
	logger, flush := logging.NewConsoleLogger(lvl)
	defer flush() //nolint:errcheck

	report, err := probe.Run(ctx, probe.Config{
		Addr:    *addr,
		Mode:    m,
		Clients: *clients,
		Size:    *size,
		Timeout: *timeout,
		Logger:  logger,
	})
	if report != nil {
		fmt.Fprintln(stderr, report)
	}
	if err != nil {
		fmt.Fprintf(stderr, "echoloop probe: %v\n", err)
		return exitFailure
	}
	return exitOK
}
