package ingest

// limiter.go bounds how many conversions run at once.
//
// Conversions hold a whole file in memory, so the HTTP surface admits at
// most MaxConcurrent of them. A request that cannot get a slot within maxWait
// fails with ErrBusy. WaitForDrain lets shutdown wait for running
// conversions to finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when every conversion slot stays occupied for the
// whole wait. Clients should retry after a short delay.
var ErrBusy = errors.New("too many concurrent conversions, please try again later")

// DefaultMaxConcurrent is the slot count used when none is configured.
const DefaultMaxConcurrent = 4

// DefaultMaxWait is how long Acquire waits when no wait is configured.
const DefaultMaxWait = 30 * time.Second

// Limiter is a counting semaphore for conversions.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	metrics *Metrics

	mu       sync.RWMutex
	active   int
	rejected int64
}

// NewLimiter allows at most maxConcurrent simultaneous conversions. m may be
// nil.
func NewLimiter(maxConcurrent int, maxWait time.Duration, m *Metrics) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		metrics: m,
	}
}

// Acquire waits for a slot. It returns ErrBusy when maxWait passes first and
// ctx.Err() when ctx ends first. Callers must Release after a nil return.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.started()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.mu.Lock()
		l.rejected++
		l.mu.Unlock()
		l.metrics.rejected()
		return ErrBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.started()
		return true
	default:
		return false
	}
}

func (l *Limiter) started() {
	l.mu.Lock()
	l.active++
	active := l.active
	l.mu.Unlock()
	l.metrics.setActive(active)
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	active := l.active
	l.mu.Unlock()
	l.metrics.setActive(active)

	<-l.slots
}

// ActiveCount returns the number of running conversions.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no conversion is running or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter, served by the health endpoint.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Rejected      int64 `json:"rejected"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active, rejected := l.active, l.rejected
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
		Rejected:      rejected,
	}
}
