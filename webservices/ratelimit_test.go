package webservices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitsDefaults(t *testing.T) {
	r := RateLimits{}.withDefaults()
	assert.Equal(t, DefaultPerRUCPerSec, r.PerRUCPerSec)
	assert.Equal(t, DefaultPerIPPerMin, r.PerIPPerMin)
	assert.Equal(t, DefaultConcurrentPerRUC, r.ConcurrentPerRUC)
	assert.Equal(t, DefaultBatchPerMin, r.BatchPerMin)
}

// The eleventh request in one second waits for the next window instead
// of reaching the service.
func TestEleventhRequestWaitsLocally(t *testing.T) {
	p := newLimiterPool(RateLimits{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		release, err := p.acquire(ctx, "80012345")
		require.NoError(t, err)
		release()
	}

	start := time.Now()
	release, err := p.acquire(ctx, "80012345")
	require.NoError(t, err)
	release()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"the request past the burst must wait for a token")
}

func TestInFlightCapBlocksSixthRequest(t *testing.T) {
	p := newLimiterPool(RateLimits{})
	ctx := context.Background()

	releases := make([]func(), 0, 5)
	for i := 0; i < 5; i++ {
		release, err := p.acquire(ctx, "80012345")
		require.NoError(t, err)
		releases = append(releases, release)
	}

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err := p.acquire(short, "80012345")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Releasing one slot unblocks the waiter.
	releases[0]()
	release, err := p.acquire(ctx, "80012345")
	require.NoError(t, err)
	release()
	for _, release := range releases[1:] {
		release()
	}
}

func TestLimitersAreScopedPerRUC(t *testing.T) {
	p := newLimiterPool(RateLimits{ConcurrentPerRUC: 1})
	ctx := context.Background()

	release, err := p.acquire(ctx, "80012345")
	require.NoError(t, err)
	defer release()

	// Another issuer is not held back by the first issuer's slot.
	other, err := p.acquire(ctx, "80054321")
	require.NoError(t, err)
	other()
}

func TestBatchWindow(t *testing.T) {
	p := newLimiterPool(RateLimits{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		release, err := p.acquireBatch(ctx, "80012345")
		require.NoError(t, err)
		release()
	}

	// The third batch in the window waits; a cancelled context aborts it.
	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err := p.acquireBatch(short, "80012345")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThrottleWaitPerRUCDrainsTheBucket(t *testing.T) {
	p := newLimiterPool(RateLimits{})
	require.NoError(t, p.throttleWait(context.Background(), "80012345", true))

	// The drained bucket makes the next request wait for a fresh window.
	start := time.Now()
	release, err := p.acquire(context.Background(), "80012345")
	require.NoError(t, err)
	release()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottleWaitPerIPHonorsCancellation(t *testing.T) {
	p := newLimiterPool(RateLimits{PerIPPerMin: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.throttleWait(ctx, "80012345", false)
	assert.ErrorIs(t, err, context.Canceled)
}
