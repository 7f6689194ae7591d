package auth

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter throttles login attempts per client IP with a token bucket.
type LoginRateLimiter struct {
	limit rate.Limit
	burst int
	mu    sync.Mutex
	peers map[string]*ipLimiter
}

// NewLoginRateLimiter allows perSecond attempts with the given burst.
func NewLoginRateLimiter(perSecond float64, burst int) *LoginRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LoginRateLimiter{limit: rate.Limit(perSecond), burst: burst, peers: map[string]*ipLimiter{}}
}

// Allow consumes a token for ip.
func (l *LoginRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	peer, ok := l.peers[ip]
	if !ok {
		peer = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.peers[ip] = peer
	}
	peer.lastSeen = time.Now()
	return peer.limiter.Allow()
}

// Sweep drops limiters idle for longer than idle.
func (l *LoginRateLimiter) Sweep(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, peer := range l.peers {
		if peer.lastSeen.Before(cutoff) {
			delete(l.peers, ip)
		}
	}
}

// Run sweeps stale limiters every interval until ctx is cancelled.
func (l *LoginRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(2 * interval)
		}
	}
}

// Handler rejects requests over the limit with 429.
func (l *LoginRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			return apperrors.NewRateLimited("too many login attempts")
		}
		return c.Next()
	}
}
