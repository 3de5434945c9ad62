package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// Middleware applies a per-client-IP token bucket to the route group it
// is attached to. Stale client entries are evicted in the background.
func Middleware(config Config) gin.HandlerFunc {
	limiters := make(map[string]*clientLimiter)
	var mu sync.RWMutex

	go func() {
		ticker := time.NewTicker(config.CleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			now := time.Now()
			for ip, cl := range limiters {
				cl.mu.Lock()
				lastSeen := cl.lastSeen
				cl.mu.Unlock()
				if now.Sub(lastSeen) > config.MaxAge {
					delete(limiters, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		mu.RLock()
		cl, exists := limiters[clientIP]
		mu.RUnlock()

		if !exists {
			mu.Lock()
			cl, exists = limiters[clientIP]
			if !exists {
				cl = &clientLimiter{
					limiter:  rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
					lastSeen: time.Now(),
				}
				limiters[clientIP] = cl
			}
			mu.Unlock()
		}

		cl.mu.Lock()
		cl.lastSeen = time.Now()
		cl.mu.Unlock()

		if !cl.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(int(config.RPS)))
		c.Next()
	}
}
