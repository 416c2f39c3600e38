package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool hands out one token bucket per key.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	now   func() time.Time
	swept time.Time
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if burst < 1 {
		burst = 1
	}
	return &LimiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		now:   time.Now,
	}
}

// Allow reports whether key may make another request now.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.swept) > limiterIdleTTL {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(p.m, k)
			}
		}
		p.swept = now
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// SendRateLimitMiddleware limits message sends per authenticated user, or
// per client IP when auth is off. A nil pool disables the limit.
func SendRateLimitMiddleware(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pool == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if userID, ok := services.UserIDFromContext(c.Request.Context()); ok {
			key = "user:" + userID
		}

		if !pool.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(pool.rps)))
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("message rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(rps float64) int {
	if rps <= 0 {
		return 1
	}
	secs := int(1/rps + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}
