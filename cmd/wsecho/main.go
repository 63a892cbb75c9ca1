// Command wsecho is a development server for persistent websocket clients.
// It echoes every message received on /ws and advertises its websocket
// endpoint on /api/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mickaelvieira/persistent-websocket/codec"
	"github.com/mickaelvieira/persistent-websocket/config"
	"github.com/mickaelvieira/persistent-websocket/server"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var listen, wsURL, codecName, logLevel string

	flagSet := pflag.NewFlagSet("wsecho", pflag.ContinueOnError)
	flagSet.StringVarP(&listen, "listen", "l", "127.0.0.1:3002", "address to listen on")
	flagSet.StringVar(&wsURL, "ws-url", "", "websocket URL advertised on /api/config (default: derived from the request host)")
	flagSet.StringVar(&codecName, "codec", "json", "wire format: json or cbor")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger, err := config.LogConfig{Level: logLevel, Format: "text"}.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	c, err := codec.ByName(codecName)
	if err != nil {
		return err
	}

	h := server.NewHandler(server.Echo,
		server.WithLogger(logger),
		server.WithCodec(c),
		server.WithOnCloseCallback(func() {
			logger.Info("client disconnected")
		}),
	)
	h.WsURL = wsURL

	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listen)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdown)
}
