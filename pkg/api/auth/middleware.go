package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/valyala/fasthttp"

	"reportchain/pkg/api/router"
	"reportchain/pkg/logger"
)

// Config is the security section the middleware enforces. With no APIKeys
// every request is accepted and rate limited by remote address.
type Config struct {
	APIKeys []string
	RPS     float64
	Burst   int
}

var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware authenticates and rate limits requests.
type Middleware struct {
	cfg      Config
	limiters *limiterPool
}

func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{cfg: cfg, limiters: newLimiterPool(cfg.RPS, cfg.Burst)}
}

// Wrap returns next guarded by authentication and rate limiting.
func (m *Middleware) Wrap(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)

		path := string(ctx.Path())
		if publicPaths[path] {
			next(ctx)
			return
		}

		key := ""
		if len(m.cfg.APIKeys) > 0 {
			var ok bool
			key, ok = requestKey(ctx)
			if !ok || !m.knownKey(key) {
				router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
				return
			}
		} else {
			key = clientIP(ctx)
		}

		if !m.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "path", path)
			return
		}
		next(ctx)
	}
}

// Shutdown stops background limiter cleanup.
func (m *Middleware) Shutdown() {
	m.limiters.Shutdown()
}

func (m *Middleware) knownKey(key string) bool {
	for _, k := range m.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// requestKey reads "Authorization: Bearer <key>" or "X-API-Key".
func requestKey(ctx *fasthttp.RequestCtx) (string, bool) {
	if auth := string(ctx.Request.Header.Peek("Authorization")); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if k := strings.TrimSpace(after); k != "" {
				return k, true
			}
		}
	}
	if k := strings.TrimSpace(string(ctx.Request.Header.Peek("X-API-Key"))); k != "" {
		return k, true
	}
	return "", false
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	return ctx.RemoteIP().String()
}
