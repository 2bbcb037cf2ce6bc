package keepalive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBackendURL          = "http://localhost:5000"
	DefaultPingInterval        = 14 * time.Minute
	DefaultHealthCheckInterval = 5 * time.Minute

	pingTimeout     = 10 * time.Second
	fallbackTimeout = 5 * time.Second
	healthPath      = "/api/health"
	userAgent       = "ShopShip-Wakeup/1.0"
)

// fallbackPaths are tried in order when the main ping fails.
var fallbackPaths = []string{"/", healthPath}

// KeepAlive pings the service's own public URL so the host does not idle it out.
type KeepAlive interface {
	Start(ctx context.Context)
	Stop()
	Status() Status
	Trigger(ctx context.Context) PingResult
	Recommendations() Recommendations
}

type Config struct {
	BackendURL          string
	PingInterval        time.Duration
	HealthCheckInterval time.Duration
}

type PingResult struct {
	Endpoint   string    `json:"endpoint,omitempty"`
	OK         bool      `json:"ok"`
	StatusCode int       `json:"statusCode,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

type Status struct {
	Active                 bool        `json:"isActive"`
	BackendURL             string      `json:"backendUrl,omitempty"`
	PingIntervalMs         int64       `json:"pingIntervalMs,omitempty"`
	HealthCheckIntervalMs  int64       `json:"healthCheckIntervalMs,omitempty"`
	HasPingInterval        bool        `json:"hasPingInterval"`
	HasHealthCheckInterval bool        `json:"hasHealthCheckInterval"`
	LastPing               *PingResult `json:"lastPing,omitempty"`
	LastHealthCheck        *PingResult `json:"lastHealthCheck,omitempty"`
	Error                  string      `json:"error,omitempty"`
	Timestamp              time.Time   `json:"timestamp"`
}

type Recommendations struct {
	Services             []string `json:"services"`
	RecommendedEndpoints []string `json:"recommendedEndpoints"`
	RecommendedInterval  string   `json:"recommendedInterval"`
	SetupInstructions    []string `json:"setupInstructions"`
}

// HTTPKeepAlive runs two independent loops: a self-ping with a fallback walk, and a health check.
type HTTPKeepAlive struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastPing   *PingResult
	lastHealth *PingResult
}

var _ KeepAlive = (*HTTPKeepAlive)(nil)

func NewHTTP(cfg Config, logger *zap.Logger) *HTTPKeepAlive {
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	return &HTTPKeepAlive{
		cfg:    cfg,
		client: &http.Client{},
		log:    logging.OrNop(logger).Named("keepalive"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// New picks the HTTP implementation when enabled, the no-op one otherwise.
func New(enabled bool, cfg Config, logger *zap.Logger) KeepAlive {
	if !enabled {
		logging.OrNop(logger).Info("keep-alive disabled")
		return Noop{}
	}
	return NewHTTP(cfg, logger)
}

// Start launches both loops. Each loop fires once immediately. A second Start is a no-op.
func (k *HTTPKeepAlive) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil {
		k.log.Info("keep-alive already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel

	k.log.Info("keep-alive started",
		zap.String("backend_url", k.cfg.BackendURL),
		zap.Duration("ping_interval", k.cfg.PingInterval),
		zap.Duration("health_interval", k.cfg.HealthCheckInterval),
	)
	k.wg.Add(2)
	go k.loop(ctx, k.cfg.PingInterval, func(ctx context.Context) { k.ping(ctx) })
	go k.loop(ctx, k.cfg.HealthCheckInterval, k.healthCheck)
}

func (k *HTTPKeepAlive) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer k.wg.Done()
	fn(ctx)

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

// Stop cancels both loops and waits for them to return.
func (k *HTTPKeepAlive) Stop() {
	k.mu.Lock()
	cancel := k.cancel
	k.cancel = nil
	k.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	k.wg.Wait()
	k.log.Info("keep-alive stopped")
}

func (k *HTTPKeepAlive) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	active := k.cancel != nil
	return Status{
		Active:                 active,
		BackendURL:             k.cfg.BackendURL,
		PingIntervalMs:         k.cfg.PingInterval.Milliseconds(),
		HealthCheckIntervalMs:  k.cfg.HealthCheckInterval.Milliseconds(),
		HasPingInterval:        active,
		HasHealthCheckInterval: active,
		LastPing:               k.lastPing,
		LastHealthCheck:        k.lastHealth,
		Timestamp:              k.now(),
	}
}

// Trigger runs one self-ping now, regardless of whether the loops are running.
func (k *HTTPKeepAlive) Trigger(ctx context.Context) PingResult {
	k.log.Info("manual wakeup triggered")
	return k.ping(ctx)
}

func (k *HTTPKeepAlive) Recommendations() Recommendations {
	return Recommendations{
		Services: []string{
			"https://uptimerobot.com",
			"https://pingdom.com",
			"https://statuscake.com",
		},
		RecommendedEndpoints: []string{
			k.cfg.BackendURL + healthPath,
			k.cfg.BackendURL + "/api/wakeup",
			k.cfg.BackendURL + "/",
		},
		RecommendedInterval: "5-10 minutes",
		SetupInstructions: []string{
			"1. Sign up for an external ping service (UptimeRobot, Pingdom, etc.)",
			"2. Add your backend URL as a monitor",
			"3. Set ping interval to 5-10 minutes",
			"4. Configure alerts for downtime",
			"5. Use the /api/health endpoint for monitoring",
		},
	}
}

// ping hits the health endpoint and walks the fallback paths when it fails.
func (k *HTTPKeepAlive) ping(ctx context.Context) PingResult {
	res, _ := k.get(ctx, healthPath, pingTimeout, nil)
	if res.OK {
		k.log.Info("self-ping ok", zap.Int64("duration_ms", res.DurationMs))
	} else {
		k.log.Warn("self-ping failed", zap.Int("status", res.StatusCode), zap.String("error", res.Error))
		for _, p := range fallbackPaths {
			alt, _ := k.get(ctx, p, fallbackTimeout, nil)
			if alt.OK {
				k.log.Info("fallback endpoint responded", zap.String("endpoint", p))
				res = alt
				break
			}
			k.log.Warn("fallback endpoint failed", zap.String("endpoint", p), zap.String("error", alt.Error))
		}
		if !res.OK {
			k.log.Error("all keep-alive endpoints failed, backend may be down")
		}
	}

	k.mu.Lock()
	k.lastPing = &res
	k.mu.Unlock()
	return res
}

type healthBody struct {
	Data struct {
		Services string `json:"services"`
		Version  string `json:"version"`
	} `json:"data"`
}

func (k *HTTPKeepAlive) healthCheck(ctx context.Context) {
	res, body := k.get(ctx, healthPath, fallbackTimeout, http.Header{"Cache-Control": []string{"no-cache"}})
	if res.OK {
		var hb healthBody
		_ = json.Unmarshal(body, &hb)
		k.log.Info("health check passed",
			zap.Int64("duration_ms", res.DurationMs),
			zap.String("services", hb.Data.Services),
			zap.String("version", hb.Data.Version),
		)
	} else {
		k.log.Error("health check failed", zap.Int("status", res.StatusCode), zap.String("error", res.Error))
	}

	k.mu.Lock()
	k.lastHealth = &res
	k.mu.Unlock()
}

func (k *HTTPKeepAlive) get(ctx context.Context, path string, timeout time.Duration, hdr http.Header) (PingResult, []byte) {
	start := k.now()
	res := PingResult{Endpoint: path, At: start}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.BackendURL+path, nil)
	if err != nil {
		res.Error = errors.Wrap(err, "new request").Error()
		return res, nil
	}
	req.Header.Set("User-Agent", userAgent)
	for key, vals := range hdr {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}

	resp, err := k.client.Do(req)
	res.DurationMs = k.now().Sub(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	res.StatusCode = resp.StatusCode
	res.OK = resp.StatusCode == http.StatusOK
	if !res.OK {
		res.Error = http.StatusText(resp.StatusCode)
	}
	return res, body
}

// Noop is selected when keep-alive is disabled.
type Noop struct{}

var _ KeepAlive = Noop{}

func (Noop) Start(context.Context) {}

func (Noop) Stop() {}

func (Noop) Status() Status {
	return Status{Active: false, Error: "keep-alive disabled", Timestamp: time.Now().UTC()}
}

func (Noop) Trigger(context.Context) PingResult {
	return PingResult{Error: "keep-alive disabled", At: time.Now().UTC()}
}

func (Noop) Recommendations() Recommendations {
	return Recommendations{}
}
