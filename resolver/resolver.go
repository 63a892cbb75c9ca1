// Package resolver determines the websocket endpoint a client connects to.
//
// A Resolver is consulted before every connection attempt and never cached,
// so an endpoint that was unreachable during one attempt may be picked up on
// the next one.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

// Resolver produces the URL of the websocket endpoint
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Func adapts a function to the Resolver interface
type Func func(ctx context.Context) (string, error)

func (f Func) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always resolves to the same URL
type Static string

func (s Static) Resolve(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty endpoint")
	}
	return string(s), nil
}

const (
	// DefaultConfigPath is where development servers publish their endpoint
	DefaultConfigPath = "/api/config"

	// DefaultPath is the websocket path appended to every resolved endpoint
	DefaultPath = "/ws"

	devFrontendPort = "3001"
	devAPIPort      = "3002"
	fallbackPort    = "3008"
)

// ConfigDocument is the document served on the configuration path
type ConfigDocument struct {
	WsURL string `json:"wsUrl"`
}

// Origin resolves the endpoint relative to the origin the client runs for.
//
// Production origins (any host that is not loopback-style) connect to the
// same host. Development origins ask the server for its configuration and
// fall back to a port mapping when the document cannot be fetched.
type Origin struct {
	// Origin is the http(s) URL of the application
	Origin *url.URL

	// ConfigPath is requested on development origins, defaults to /api/config
	ConfigPath string

	// HTTPClient performs the configuration fetch, defaults to a client with a 5s timeout
	HTTPClient *http.Client

	// Logger receives resolution records, defaults to a discarding logger
	Logger *slog.Logger
}

// NewOrigin parses the origin and returns a resolver using default settings
func NewOrigin(origin string, logger *slog.Logger) (*Origin, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("invalid origin: missing host")
	}

	return &Origin{Origin: u, Logger: logger}, nil
}

func (o *Origin) Resolve(ctx context.Context) (string, error) {
	if o.Origin == nil {
		return "", errors.New("missing origin")
	}

	logger := o.logger()

	if IsProduction(o.Origin.Hostname()) {
		u := o.scheme() + "://" + o.Origin.Host + DefaultPath
		logger.Info("production websocket url", "url", u)
		return u, nil
	}

	u, err := o.fetch(ctx)
	if err == nil {
		logger.Info("development websocket url from config", "url", u)
		return u, nil
	}

	// an explicit cancellation is not an environment problem, give up on this attempt
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	logger.Warn("could not fetch server config, using default development url", "error", err)

	u = o.fallback()
	logger.Info("development websocket url fallback", "url", u)

	return u, nil
}

// IsProduction reports whether the hostname is served outside of a local machine
func IsProduction(hostname string) bool {
	return !strings.Contains(hostname, "localhost") && !strings.Contains(hostname, "127.0.0.1")
}

func (o *Origin) fetch(ctx context.Context) (string, error) {
	p := o.ConfigPath
	if p == "" {
		p = DefaultConfigPath
	}

	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid config path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.Origin.ResolveReference(ref).String(), nil)
	if err != nil {
		return "", err
	}

	res, err := o.client().Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close() // nolint:errcheck

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", res.Status)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return "", err
	}

	var doc ConfigDocument
	if err := json.Unmarshal(jsonc.ToJSON(b), &doc); err != nil {
		return "", fmt.Errorf("malformed config document: %w", err)
	}
	if doc.WsURL == "" {
		return "", errors.New("malformed config document: missing wsUrl")
	}

	return doc.WsURL + DefaultPath, nil
}

func (o *Origin) fallback() string {
	port := o.Origin.Port()
	switch port {
	case devFrontendPort:
		port = devAPIPort
	case "":
		port = fallbackPort
	}

	return o.scheme() + "://" + net.JoinHostPort(o.Origin.Hostname(), port) + DefaultPath
}

func (o *Origin) scheme() string {
	if o.Origin.Scheme == "https" {
		return "wss"
	}
	return "ws"
}

func (o *Origin) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (o *Origin) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}
