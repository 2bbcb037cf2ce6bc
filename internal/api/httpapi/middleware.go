package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/ShopShip/internal/cache/rediscache"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if status >= http.StatusInternalServerError {
			a.log.Warn("request", fields...)
			return
		}
		a.log.Debug("request", fields...)
	})
}

// cors allows only the storefront origin, with credentials.
func (a *API) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{a.opts.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// rateLimit gives every client address a fixed number of calls per minute.
// A limiter outage lets the request through.
func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || a.opts.RateLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := rediscache.WindowKey("rl:api:"+clientIP(r), a.now())
		allowed, n, err := a.limiter.Allow(r.Context(), key, a.opts.RateLimitPerMinute, 70*time.Second)
		if err != nil {
			a.log.Warn("rate limiter unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			a.log.Info("client throttled", zap.String("client", clientIP(r)), zap.Int64("count", n))
			w.Header().Set("Retry-After", strconv.Itoa(60-a.now().Second()))
			fail(w, http.StatusTooManyRequests, "Too many requests, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port. RealIP has already applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
