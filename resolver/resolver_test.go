package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	u, err := Static("ws://example.com/ws").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws", u)

	_, err = Static("").Resolve(context.Background())
	assert.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, IsProduction("example.com"))
	assert.True(t, IsProduction("10.0.0.4"))
	assert.False(t, IsProduction("localhost"))
	assert.False(t, IsProduction("app.localhost"))
	assert.False(t, IsProduction("127.0.0.1"))
}

func TestNewOriginRejectsInvalidOrigins(t *testing.T) {
	for _, o := range []string{"ws://example.com", "example.com", "http://", "://x"} {
		_, err := NewOrigin(o, nil)
		assert.Error(t, err, "origin %q", o)
	}
}

func TestProductionOriginUsesSameHost(t *testing.T) {
	cases := map[string]string{
		"https://example.com":         "wss://example.com/ws",
		"http://example.com:8080":     "ws://example.com:8080/ws",
		"https://example.com/app?x=1": "wss://example.com/ws",
	}

	for origin, expected := range cases {
		r, err := NewOrigin(origin, nil)
		require.NoError(t, err)

		u, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, u, "origin %s", origin)
	}
}

func TestDevelopmentOriginUsesConfigDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultConfigPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			// development endpoint
			"wsUrl": "ws://127.0.0.1:9009",
		}`))
	}))
	defer server.Close()

	r, err := NewOrigin(server.URL, nil)
	require.NoError(t, err)

	u, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9009/ws", u)
}

func TestDevelopmentOriginFallsBackOnFailures(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"missing": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"url":"ws://elsewhere"}`))
		},
	}

	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(h)
			defer server.Close()

			r, err := NewOrigin(server.URL, nil)
			require.NoError(t, err)

			u, err := r.Resolve(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws", u)
		})
	}
}

func TestFallbackPortMapping(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3001":  "ws://localhost:3002/ws",
		"http://localhost":       "ws://localhost:3008/ws",
		"https://127.0.0.1:5173": "wss://127.0.0.1:5173/ws",
	}

	for origin, expected := range cases {
		u, err := url.Parse(origin)
		require.NoError(t, err)

		r := &Origin{Origin: u}
		assert.Equal(t, expected, r.fallback(), "origin %s", origin)
	}
}

func TestResolveIsNotCached(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"wsUrl":"ws://127.0.0.1:9009"}`))
	}))
	defer server.Close()

	r, err := NewOrigin(server.URL, nil)
	require.NoError(t, err)

	first, err := r.Resolve(context.Background())
	require.NoError(t, err)

	second, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws", first)
	assert.Equal(t, "ws://127.0.0.1:9009/ws", second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	r, err := NewOrigin(server.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
