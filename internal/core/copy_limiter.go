package core

// copy_limiter.go bounds how many copy sessions run at once.
//
// Every import and export holds a slot for its whole duration, which also
// bounds the pool connections copies can pin. When all slots are taken a new
// session waits up to maxWait before failing with ErrTooManyCopies.
// WaitForDrain lets shutdown wait for running sessions to finish.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/jsonlcopy/internal/jsonl"
)

// ErrTooManyCopies is returned when no copy slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyCopies = errors.New("too many concurrent copies, please try again later")

// DefaultMaxConcurrentCopies is the default limit for parallel sessions.
const DefaultMaxConcurrentCopies = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// CopyLimiter is a semaphore over copy sessions that also counts how many
// of the running sessions are imports and how many are exports.
type CopyLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.RWMutex
	imports int
	exports int
}

// NewCopyLimiter creates a limiter that allows at most maxConcurrent
// simultaneous sessions. Values <= 0 select the defaults.
func NewCopyLimiter(maxConcurrent int, maxWait time.Duration) *CopyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCopies
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &CopyLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot for a session in direction dir. It returns
// ErrTooManyCopies when the wait times out and ctx.Err() when ctx ends
// first. The caller must call Release with the same direction.
func (l *CopyLimiter) Acquire(ctx context.Context, dir jsonl.Direction) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.track(dir, 1)
		return nil
	case <-timer.C:
		return ErrTooManyCopies
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *CopyLimiter) TryAcquire(dir jsonl.Direction) bool {
	select {
	case l.semaphore <- struct{}{}:
		l.track(dir, 1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *CopyLimiter) Release(dir jsonl.Direction) {
	l.track(dir, -1)
	<-l.semaphore
}

func (l *CopyLimiter) track(dir jsonl.Direction, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dir == jsonl.DirectionFrom {
		l.imports += delta
	} else {
		l.exports += delta
	}
}

// ActiveCount returns the number of running sessions.
func (l *CopyLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.imports + l.exports
}

// MaxConcurrent returns the slot count.
func (l *CopyLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *CopyLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no session is running or ctx ends.
func (l *CopyLimiter) WaitForDrain(ctx context.Context) error {
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

// CopyLimiterStatus is a snapshot of the limiter.
type CopyLimiterStatus struct {
	Imports       int `json:"imports"`
	Exports       int `json:"exports"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for the status page and API.
func (l *CopyLimiter) Status() CopyLimiterStatus {
	l.mu.RLock()
	imports, exports := l.imports, l.exports
	l.mu.RUnlock()

	return CopyLimiterStatus{
		Imports:       imports,
		Exports:       exports,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
