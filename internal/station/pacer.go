package station

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pacer spaces feed requests. A 429 drops the rate to what Retry-After asks
// for, or halves it; each success climbs back by a quarter of the base rate.
// The rate never exceeds the configured base or falls below a tenth of it.
type pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	base    rate.Limit
	floor   rate.Limit
	current rate.Limit
}

func newPacer(perSecond float64) *pacer {
	base := rate.Limit(perSecond)
	return &pacer{
		limiter: rate.NewLimiter(base, 1),
		base:    base,
		floor:   base / 10,
		current: base,
	}
}

func (p *pacer) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

func (p *pacer) succeeded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == p.base {
		return
	}
	p.set(min(p.current+p.base/4, p.base))
}

// throttled slows the pacer after a 429. retryAfter is the raw header value.
func (p *pacer) throttled(retryAfter string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.current / 2
	if d := parseRetryAfter(retryAfter, now); d > 0 {
		next = min(next, rate.Every(d))
	}
	p.set(max(next, p.floor))
	zap.L().Warn("station feed throttled, slowing down",
		zap.String("component", "station"),
		zap.Float64("rate", float64(p.current)),
		zap.String("retry_after", retryAfter),
	)
}

func (p *pacer) set(l rate.Limit) {
	p.current = l
	p.limiter.SetLimit(l)
}

func (p *pacer) limit() rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// parseRetryAfter accepts delay seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}
