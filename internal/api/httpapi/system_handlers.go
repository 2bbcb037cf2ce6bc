package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status   string    `json:"status"`
	Time     time.Time `json:"time"`
	Services string    `json:"services"`
	Version  string    `json:"version"`
}

type serverInfo struct {
	UptimeSeconds int64     `json:"uptimeSeconds"`
	HeapAllocMB   uint64    `json:"heapAllocMb"`
	Goroutines    int       `json:"goroutines"`
	Timestamp     time.Time `json:"timestamp"`
}

func (a *API) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ShopShip API is running"))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ok(w, "ok", healthResponse{
		Status:   "ok",
		Time:     a.now(),
		Services: "All backend services available",
		Version:  a.opts.Version,
	})
}

func (a *API) serverInfo() serverInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := a.now()
	return serverInfo{
		UptimeSeconds: int64(now.Sub(a.startedAt).Seconds()),
		HeapAllocMB:   ms.HeapAlloc >> 20,
		Goroutines:    runtime.NumGoroutine(),
		Timestamp:     now,
	}
}

func (a *API) wakeup(w http.ResponseWriter, r *http.Request) {
	a.log.Info("wakeup endpoint hit")
	ok(w, "Backend is awake and ready", map[string]any{
		"status": "awake",
		"time":   a.now(),
		"server": a.serverInfo(),
	})
}

func (a *API) wakeupStatus(w http.ResponseWriter, r *http.Request) {
	ok(w, "Wakeup status", map[string]any{
		"wakeup": a.keepAlive.Status(),
		"server": a.serverInfo(),
	})
}

// wakeupTrigger answers at once; the self-ping runs in the background.
func (a *API) wakeupTrigger(w http.ResponseWriter, r *http.Request) {
	a.log.Info("manual wakeup requested")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.keepAlive.Trigger(ctx)
	}()
	ok(w, "Wakeup triggered successfully", map[string]any{
		"status": "triggered",
		"time":   a.now(),
	})
}

func (a *API) wakeupRecommendations(w http.ResponseWriter, r *http.Request) {
	ok(w, "External ping recommendations", a.keepAlive.Recommendations())
}
