package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the politeness schedule: a minimum interval between any
// two requests the engine issues, a minimum per-site interval (the only
// shared resource when product analyses run concurrently), and a random
// jitter on top. A zero interval disables pacing, which is how tests run
// the orchestrator without sleeping.
type Pacer struct {
	interval  time.Duration
	jitterMin time.Duration
	jitterMax time.Duration

	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64

	global  *rate.Limiter
	mu      sync.Mutex
	perSite map[string]*rate.Limiter

	started atomic.Bool
}

// NewPacer builds a pacer with the given minimum inter-request interval
// and jitter bounds.
func NewPacer(interval, jitterMin, jitterMax time.Duration) *Pacer {
	return &Pacer{
		interval:  interval,
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		sleep:     sleepCtx,
		randFloat: rand.Float64,
		global:    newLimiter(interval),
		perSite:   make(map[string]*rate.Limiter),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until a request to siteID is allowed. The very first request
// through the pacer proceeds immediately.
func (p *Pacer) Wait(ctx context.Context, siteID string) error {
	first := p.started.CompareAndSwap(false, true)

	if err := p.global.Wait(ctx); err != nil {
		return err
	}
	if err := p.site(siteID).Wait(ctx); err != nil {
		return err
	}
	if first || p.interval <= 0 {
		return nil
	}
	return p.sleep(ctx, p.jitter())
}

func (p *Pacer) site(siteID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.perSite[siteID]
	if !ok {
		l = newLimiter(p.interval)
		p.perSite[siteID] = l
	}
	return l
}

func (p *Pacer) jitter() time.Duration {
	span := p.jitterMax - p.jitterMin
	if span <= 0 {
		return p.jitterMin
	}
	return p.jitterMin + time.Duration(p.randFloat()*float64(span))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
