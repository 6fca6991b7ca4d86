package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delayer pauses before an outbound request.
type Delayer interface {
	Wait(ctx context.Context) error
}

// Jitter sleeps a random duration in [minDelay, maxDelay) before every
// request. It is a politeness heuristic against upstream block rules.
type Jitter struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rnd      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewJitter(minDelay, maxDelay time.Duration) *Jitter {
	return &Jitter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepContext,
	}
}

func (j *Jitter) Wait(ctx context.Context) error {
	delay := j.calculateDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	return j.sleep(ctx, delay)
}

func (j *Jitter) calculateDelay() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxDelay <= j.minDelay {
		return j.minDelay
	}

	delta := j.maxDelay - j.minDelay
	return j.minDelay + time.Duration(j.rnd.Int63n(int64(delta)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
