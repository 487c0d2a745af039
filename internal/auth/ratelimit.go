package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emitkithq/emitkit/internal/logger"
)

const rateWindow = time.Minute

// WindowCounter increments a counter that expires with its window
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateInfo is reported to clients in the X-RateLimit-* headers
type RateInfo struct {
	Limit     int
	Remaining int
	// Reset is the end of the current window in unix milliseconds.
	Reset int64
}

// RateLimiter meters requests per API key in fixed one-minute windows kept
// in Valkey. While Valkey is unreachable an in-process token bucket per key
// stands in.
type RateLimiter struct {
	counter      WindowCounter
	defaultLimit int
	burst        int
	now          func() time.Time
	log          *zap.Logger

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

func NewRateLimiter(counter WindowCounter, defaultLimit, burst int, log *zap.Logger) *RateLimiter {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		counter:      counter,
		defaultLimit: defaultLimit,
		burst:        burst,
		now:          time.Now,
		log:          log,
		fallback:     make(map[string]*rate.Limiter),
	}
}

// Allow counts one request for keyID against limit (0 means the default).
func (l *RateLimiter) Allow(ctx context.Context, keyID string, limit int) (RateInfo, bool) {
	if limit <= 0 {
		limit = l.defaultLimit
	}
	now := l.now()
	window := now.Unix() / int64(rateWindow.Seconds())
	info := RateInfo{
		Limit: limit,
		Reset: (window + 1) * rateWindow.Milliseconds(),
	}

	count, err := l.counter.IncrWindow(ctx, fmt.Sprintf("ratelimit:apikey:%s:%d", keyID, window), rateWindow)
	if err != nil {
		logger.FromContext(ctx, l.log).Warn("Rate limit counter unavailable, using local limiter",
			zap.String("api_key_id", keyID),
			zap.Error(err))
		return l.allowLocal(keyID, limit, now, info)
	}

	info.Remaining = max(limit-int(count), 0)
	return info, count <= int64(limit)
}

func (l *RateLimiter) allowLocal(keyID string, limit int, now time.Time, info RateInfo) (RateInfo, bool) {
	lim := l.limiter(keyID, limit)
	allowed := lim.AllowN(now, 1)
	info.Remaining = max(int(lim.TokensAt(now)), 0)
	return info, allowed
}

func (l *RateLimiter) limiter(keyID string, limit int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.fallback[keyID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(limit)/rateWindow.Seconds()), l.burst)
		l.fallback[keyID] = lim
	}
	return lim
}
