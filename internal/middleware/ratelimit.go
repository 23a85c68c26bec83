package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimiter implements token bucket algorithm for rate limiting
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.RWMutex
	rate     int           // requests per window
	window   time.Duration // time window
	exempt   []string      // path prefixes that bypass the limiter
	stop     chan struct{}
	stopOnce sync.Once
}

type Visitor struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// rate: max requests per window (e.g., 100)
// window: time window (e.g., 1 minute)
// exempt: path prefixes never limited, e.g. "/health"
func NewRateLimiter(rate int, window time.Duration, exempt ...string) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		rate:     rate,
		window:   window,
		exempt:   exempt,
		stop:     make(chan struct{}),
	}

	// Cleanup old visitors every 5 minutes
	go rl.cleanup(5 * time.Minute)

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns a Fiber middleware handler
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range rl.exempt {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		if !rl.allow(c.IP()) {
			c.Set("X-RateLimit-Limit", strconv.Itoa(rl.rate))
			c.Set("X-RateLimit-Remaining", "0")
			return tooManyRequests(c, rl.window)
		}

		return c.Next()
	}
}

// allow checks if request is allowed based on rate limit
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	visitor, exists := rl.visitors[ip]
	if !exists {
		visitor = &Visitor{
			tokens:     rl.rate,
			lastRefill: time.Now(),
		}
		rl.visitors[ip] = visitor
	}
	rl.mu.Unlock()

	visitor.mu.Lock()
	defer visitor.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(visitor.lastRefill)

	// Refill tokens based on elapsed time
	if elapsed >= rl.window {
		visitor.tokens = rl.rate
		visitor.lastRefill = now
	} else {
		tokensToAdd := int(float64(rl.rate) * (elapsed.Seconds() / rl.window.Seconds()))
		visitor.tokens += tokensToAdd
		if visitor.tokens > rl.rate {
			visitor.tokens = rl.rate
		}
		if tokensToAdd > 0 {
			visitor.lastRefill = now
		}
	}

	if visitor.tokens > 0 {
		visitor.tokens--
		return true
	}

	return false
}

// cleanup removes inactive visitors
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()
		for ip, visitor := range rl.visitors {
			visitor.mu.Lock()
			if now.Sub(visitor.lastRefill) > rl.window*2 {
				delete(rl.visitors, ip)
			}
			visitor.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// tooManyRequests writes a problem body shaped like the API's other errors.
func tooManyRequests(c *fiber.Ctx, window time.Duration) error {
	retryAfter := int(window.Seconds())
	c.Set("Retry-After", strconv.Itoa(retryAfter))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"title":       "Too Many Requests",
		"status":      fiber.StatusTooManyRequests,
		"detail":      "Too many requests. Please try again later.",
		"instance":    c.Path(),
		"timestamp":   time.Now().UTC(),
		"error_code":  "RATE_LIMITED",
		"retry_after": retryAfter,
	})
}
