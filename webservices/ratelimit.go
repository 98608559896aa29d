package webservices

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Client-side rate limit defaults, matching the limits SET publishes so
// the service never answers 5002/5003 to a well-behaved sender.
const (
	DefaultPerRUCPerSec     = 10
	DefaultPerIPPerMin      = 100
	DefaultConcurrentPerRUC = 5
	DefaultBatchPerMin      = 2
)

// RateLimits overrides the client-side limits.
type RateLimits struct {
	PerRUCPerSec     int
	PerIPPerMin      int
	ConcurrentPerRUC int
	BatchPerMin      int
}

func (r RateLimits) withDefaults() RateLimits {
	if r.PerRUCPerSec <= 0 {
		r.PerRUCPerSec = DefaultPerRUCPerSec
	}
	if r.PerIPPerMin <= 0 {
		r.PerIPPerMin = DefaultPerIPPerMin
	}
	if r.ConcurrentPerRUC <= 0 {
		r.ConcurrentPerRUC = DefaultConcurrentPerRUC
	}
	if r.BatchPerMin <= 0 {
		r.BatchPerMin = DefaultBatchPerMin
	}
	return r
}

// rucLimiter holds the per-issuer buckets and the in-flight cap.
type rucLimiter struct {
	tokens   *rate.Limiter
	batch    *rate.Limiter
	inflight *semaphore.Weighted
}

// limiterPool lazily creates per-RUC limiters and shares the per-IP
// bucket across all of them. Buckets live on the sender instance, so two
// senders in one process do not share windows.
type limiterPool struct {
	limits RateLimits

	mu     sync.Mutex
	perRUC map[string]*rucLimiter
	ip     *rate.Limiter
}

func newLimiterPool(limits RateLimits) *limiterPool {
	limits = limits.withDefaults()
	return &limiterPool{
		limits: limits,
		perRUC: make(map[string]*rucLimiter),
		ip:     rate.NewLimiter(rate.Limit(float64(limits.PerIPPerMin)/60.0), limits.PerIPPerMin),
	}
}

func (p *limiterPool) forRUC(ruc string) *rucLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.perRUC[ruc]
	if !ok {
		l = &rucLimiter{
			tokens:   rate.NewLimiter(rate.Limit(p.limits.PerRUCPerSec), p.limits.PerRUCPerSec),
			batch:    rate.NewLimiter(rate.Limit(float64(p.limits.BatchPerMin)/60.0), p.limits.BatchPerMin),
			inflight: semaphore.NewWeighted(int64(p.limits.ConcurrentPerRUC)),
		}
		p.perRUC[ruc] = l
	}
	return l
}

// acquire blocks until a request slot for the RUC is available: per-RUC
// token first, then the per-IP token, then the in-flight semaphore.
// Cancellation while waiting frees the position and returns the context
// error. The returned release must be called when the request finishes.
func (p *limiterPool) acquire(ctx context.Context, ruc string) (release func(), err error) {
	l := p.forRUC(ruc)
	if err := l.tokens.Wait(ctx); err != nil {
		return nil, err
	}
	if err := p.ip.Wait(ctx); err != nil {
		return nil, err
	}
	if err := l.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.inflight.Release(1) }, nil
}

// acquireBatch additionally blocks on the per-RUC batch window.
func (p *limiterPool) acquireBatch(ctx context.Context, ruc string) (release func(), err error) {
	if err := p.forRUC(ruc).batch.Wait(ctx); err != nil {
		return nil, err
	}
	return p.acquire(ctx, ruc)
}

// throttleWait honors a server-side 5002/5003 by draining the matching
// bucket before the retry, so the next attempt lands in a fresh window.
func (p *limiterPool) throttleWait(ctx context.Context, ruc string, perRUC bool) error {
	if perRUC {
		return p.forRUC(ruc).tokens.WaitN(ctx, p.limits.PerRUCPerSec)
	}
	// Give the per-IP window time to roll over without draining it dry.
	wait := time.Duration(float64(time.Minute) / float64(p.limits.PerIPPerMin) * 5)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
