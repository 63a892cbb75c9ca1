package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	gows "github.com/gorilla/websocket"
	"github.com/mickaelvieira/persistent-websocket/resolver"
)

// Handler serves the development endpoints persistent clients rely on:
// the websocket itself and the configuration document advertising it.
type Handler struct {
	mux      *http.ServeMux
	upgrader gows.Upgrader
	logger   *slog.Logger

	// WsURL is advertised by the configuration document, when empty
	// it is derived from the request host
	WsURL string

	onConnect func(Server)
	opts      []OptionModifier
}

// NewHandler provides a handler calling onConnect with every upgraded socket.
// Sockets are created with the given options.
func NewHandler(onConnect func(Server), opts ...OptionModifier) *Handler {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handler{
		mux:    http.NewServeMux(),
		logger: o.logger,
		upgrader: gows.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		onConnect: onConnect,
		opts:      opts,
	}

	h.mux.HandleFunc("GET "+resolver.DefaultConfigPath, h.config)
	h.mux.HandleFunc("GET "+resolver.DefaultPath, h.upgrade)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	u := h.WsURL
	if u == "" {
		u = "ws://" + r.Host
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resolver.ConfigDocument{WsURL: u}); err != nil {
		h.logger.Error("config encoding error", "error", err)
	}
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an error status
		h.logger.Error("upgrade error", "error", err)
		return
	}

	s := NewServerSocket(conn, h.opts...)

	h.logger.Info("client connected", "id", s.Id(), "remote", r.RemoteAddr)

	if h.onConnect != nil {
		h.onConnect(s)
	}
}

// Echo sends every message received on the socket back to the peer
func Echo(s Server) {
	go func() {
		for v := range s.ReadMessages() {
			s.Send(v)
		}
	}()
}
