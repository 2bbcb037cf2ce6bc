package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type hits struct {
	mu    sync.Mutex
	paths []string
	ua    []string
}

func (h *hits) add(r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, r.URL.Path)
	h.ua = append(h.ua, r.Header.Get("User-Agent"))
}

func (h *hits) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.paths {
		if p == path {
			n++
		}
	}
	return n
}

func TestHTTPKeepAlive_TriggerHealthy(t *testing.T) {
	h := &hits{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r)
		_, _ = w.Write([]byte(`{"status":"ok","version":"2.0.0"}`))
	}))
	defer srv.Close()

	k := NewHTTP(Config{BackendURL: srv.URL + "/"}, nil)
	res := k.Trigger(context.Background())

	require.True(t, res.OK)
	require.Equal(t, "/api/health", res.Endpoint)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []string{"/api/health"}, h.paths)
	require.Equal(t, userAgent, h.ua[0])
	require.NotNil(t, k.Status().LastPing)
}

func TestHTTPKeepAlive_FallbackWalk(t *testing.T) {
	h := &hits{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r)
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte("ShopShip API is running"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	k := NewHTTP(Config{BackendURL: srv.URL}, nil)
	res := k.Trigger(context.Background())

	require.True(t, res.OK)
	require.Equal(t, "/", res.Endpoint)
	require.Equal(t, []string{"/api/health", "/"}, h.paths)
}

func TestHTTPKeepAlive_AllEndpointsDown(t *testing.T) {
	h := &hits{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	k := NewHTTP(Config{BackendURL: srv.URL}, nil)
	res := k.Trigger(context.Background())

	require.False(t, res.OK)
	require.Equal(t, http.StatusBadGateway, res.StatusCode)
	require.Equal(t, []string{"/api/health", "/", "/api/health"}, h.paths)
}

func TestHTTPKeepAlive_StartStop(t *testing.T) {
	h := &hits{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	k := NewHTTP(Config{
		BackendURL:          srv.URL,
		PingInterval:        20 * time.Millisecond,
		HealthCheckInterval: 20 * time.Millisecond,
	}, nil)

	k.Start(context.Background())
	k.Start(context.Background())
	require.True(t, k.Status().Active)

	require.Eventually(t, func() bool { return h.count("/api/health") >= 4 }, 2*time.Second, 10*time.Millisecond)
	k.Stop()

	st := k.Status()
	require.False(t, st.Active)
	require.NotNil(t, st.LastPing)
	require.NotNil(t, st.LastHealthCheck)
	require.Equal(t, int64(20), st.PingIntervalMs)

	// no more calls once stopped
	n := h.count("/api/health")
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, n, h.count("/api/health"))

	k.Stop()
}

func TestNewHTTP_Defaults(t *testing.T) {
	k := NewHTTP(Config{}, nil)
	st := k.Status()
	require.Equal(t, DefaultBackendURL, st.BackendURL)
	require.Equal(t, (14 * time.Minute).Milliseconds(), st.PingIntervalMs)
	require.Equal(t, (5 * time.Minute).Milliseconds(), st.HealthCheckIntervalMs)

	rec := k.Recommendations()
	require.Contains(t, rec.RecommendedEndpoints, DefaultBackendURL+"/api/health")
	require.Len(t, rec.SetupInstructions, 5)
}

func TestNew_SelectsImplementation(t *testing.T) {
	_, ok := New(false, Config{}, nil).(Noop)
	require.True(t, ok)

	_, ok = New(true, Config{}, nil).(*HTTPKeepAlive)
	require.True(t, ok)

	n := Noop{}
	n.Start(context.Background())
	require.False(t, n.Status().Active)
	require.Equal(t, "keep-alive disabled", n.Trigger(context.Background()).Error)
}
