// Command wsclient keeps a websocket connection open to a server, printing
// every inbound message as a line of JSON and sending every line read from
// standard input.
//
// The endpoint is either a static URL or discovered from the application
// origin before every connection attempt. Lines that are not valid JSON are
// sent as JSON strings.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mickaelvieira/persistent-websocket/client"
	"github.com/mickaelvieira/persistent-websocket/codec"
	"github.com/mickaelvieira/persistent-websocket/config"
	"github.com/mickaelvieira/persistent-websocket/metrics"
	"github.com/mickaelvieira/persistent-websocket/resolver"
	"github.com/mickaelvieira/persistent-websocket/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var configPath, url, origin, codecName, logLevel, metricsListen string

	flagSet := pflag.NewFlagSet("wsclient", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the TOML configuration file")
	flagSet.StringVar(&url, "url", "", "static websocket URL, disables endpoint discovery")
	flagSet.StringVar(&origin, "origin", "", "application origin used to discover the endpoint")
	flagSet.StringVar(&codecName, "codec", "", "wire format: json or cbor")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "address serving Prometheus metrics")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// flags win over the file and the environment
	if url != "" {
		cfg.Endpoint.URL = url
	}
	if origin != "" {
		cfg.Endpoint.Origin = origin
		if url == "" {
			cfg.Endpoint.URL = ""
		}
	}
	if codecName != "" {
		cfg.Client.Codec = codecName
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, stdin, stdout)
}

func newResolver(cfg *config.Config, logger *slog.Logger) (resolver.Resolver, error) {
	if cfg.Endpoint.URL != "" {
		return resolver.Static(cfg.Endpoint.URL), nil
	}

	r, err := resolver.NewOrigin(cfg.Endpoint.Origin, logger)
	if err != nil {
		return nil, err
	}
	r.ConfigPath = cfg.Endpoint.ConfigPath

	return r, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	r, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}

	c, err := codec.ByName(cfg.Client.Codec)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	output := json.NewEncoder(stdout)

	socket := client.NewClientSocket(r,
		client.WithLogger(logger),
		client.WithCodec(c),
		client.WithReconnectDelay(cfg.Client.ReconnectDelay.Duration),
		client.WithBufferCapacity(cfg.Client.BufferCapacity),
		client.WithMetrics(metrics.New(registry)),
		client.WithDialer(transport.NewDialer(
			transport.WithLogger(logger),
			transport.WithPingInterval(cfg.Client.PingInterval.Duration),
		)),
		client.WithMessageHandler(func(v any) {
			if err := output.Encode(v); err != nil {
				logger.Error("error printing message", "error", err)
			}
		}),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		socket.Start(ctx)
		<-ctx.Done()
		socket.Stop()
		return nil
	})

	// a blocked read of stdin cannot be interrupted, it stays outside of the group
	lines := make(chan []byte)
	go scan(ctx, stdin, lines)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				socket.Send(parseLine(line))
			}
		}
	})

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	return g.Wait()
}

// scan forwards non-empty lines until the reader ends or the context is done
func scan(ctx context.Context, r io.Reader, lines chan<- []byte) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

// parseLine sends JSON lines as values and anything else as a string
func parseLine(line []byte) any {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return string(line)
	}
	return v
}
