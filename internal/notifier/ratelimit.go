package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
)

// RateLimitConfig holds per-recipient throttling settings.
type RateLimitConfig struct {
	MaxPerWindow int           // Emails allowed per recipient per window (default: 3)
	Window       time.Duration // Refill window (default: 1 hour)
	Enabled      bool
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 3,
		Window:       time.Hour,
		Enabled:      true,
	}
}

type recipientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle wraps a Mailer with a token bucket per recipient address.
type Throttle struct {
	next    auth.Mailer
	config  RateLimitConfig
	every   rate.Limit
	mu      sync.Mutex
	buckets map[string]*recipientLimiter
	dropped int64
	now     func() time.Time
}

// NewThrottle wraps next with per-recipient rate limiting.
func NewThrottle(next auth.Mailer, config RateLimitConfig) *Throttle {
	if config.MaxPerWindow <= 0 {
		config.MaxPerWindow = 3
	}
	if config.Window <= 0 {
		config.Window = time.Hour
	}

	return &Throttle{
		next:    next,
		config:  config,
		every:   rate.Every(config.Window / time.Duration(config.MaxPerWindow)),
		buckets: make(map[string]*recipientLimiter),
		now:     time.Now,
	}
}

// SendPasswordReset forwards to the wrapped mailer unless the recipient is over its limit.
func (t *Throttle) SendPasswordReset(ctx context.Context, to, name, link string) error {
	if !t.allow(to) {
		metrics.EmailsSentTotal.WithLabelValues("throttled").Inc()
		logger.Warnf("password reset email to %s throttled", to)
		return ErrThrottled
	}
	return t.next.SendPasswordReset(ctx, to, name, link)
}

func (t *Throttle) allow(recipient string) bool {
	if !t.config.Enabled {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	b, ok := t.buckets[recipient]
	if !ok {
		b = &recipientLimiter{limiter: rate.NewLimiter(t.every, t.config.MaxPerWindow)}
		t.buckets[recipient] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		t.dropped++
		return false
	}
	return true
}

// cleanup forgets recipients idle for a full window; their bucket would be full again.
// Must be called with mutex held.
func (t *Throttle) cleanup(now time.Time) {
	for k, b := range t.buckets {
		if now.Sub(b.lastSeen) > t.config.Window {
			delete(t.buckets, k)
		}
	}
}

// Dropped returns the number of emails refused due to throttling.
func (t *Throttle) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
