// Package adaptive implements the Concurrency Manager and Dynamic Batch
// Sizer described in spec.md §4.4: both are adjusted from rolling
// success/latency statistics gathered from the upstream client.
package adaptive

import (
	"container/ring"
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
)

// sample is one (success, latency) observation recorded by the upstream
// client after every call (spec.md §4.1 "Each call records (success,
// latency_ms) into the Adaptive Controller").
type sample struct {
	at      time.Time
	success bool
	latency time.Duration
}

// ConcurrencyManager maintains a resizable token-bucket semaphore bounding
// in-flight upstream calls, widened or narrowed every adjustment interval
// from the rolling success rate and average latency of the last 100
// requests within the last 60 seconds (spec.md §4.4).
//
// The semaphore is a buffered channel of tokens rather than
// golang.org/x/sync/semaphore.Weighted: the spec's adjustment rule shrinks
// the limit by a fixed delta without waiting for in-flight callers to
// finish, which Weighted cannot do without blocking the shrinking goroutine
// on outstanding acquires. A channel token bucket shrinks by simply
// discarding `delta` tokens as they're returned, matching the teacher's own
// hand-rolled channel-based concurrency primitives in netadapter/protocol.
type ConcurrencyManager struct {
	mu      sync.Mutex
	samples *ring.Ring // fixed capacity 100
	filled  int

	limit    int
	min, max int
	toDiscard int // tokens to drop next time they're Released, for shrinking

	tokens chan struct{}

	log btclog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

const (
	sampleWindow      = 100
	sampleMaxAge      = 60 * time.Second
	adjustInterval    = 30 * time.Second
	successThreshold  = 0.95
	failureThreshold  = 0.80
	latencyGoodMillis = 2000
	latencyBadMillis  = 5000
	stepUp            = 2
	stepDown          = 1
)

// NewConcurrencyManager builds a manager with the given bounds and initial
// limit, all in [min, max] per spec.md §4.4.
func NewConcurrencyManager(min, max, initial int, log btclog.Logger) *ConcurrencyManager {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if initial < min {
		initial = min
	}
	if initial > max {
		initial = max
	}
	m := &ConcurrencyManager{
		samples: ring.New(sampleWindow),
		limit:   initial,
		min:     min,
		max:     max,
		tokens:  make(chan struct{}, max),
		log:     log,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for i := 0; i < initial; i++ {
		m.tokens <- struct{}{}
	}
	go m.adjustLoop()
	return m
}

// Acquire blocks until a slot is available or ctx is done.
func (m *ConcurrencyManager) Acquire(ctx context.Context) error {
	select {
	case <-m.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot acquired via Acquire, unless the manager has
// pending shrink discards queued, in which case the token is dropped
// instead of being returned to the bucket.
func (m *ConcurrencyManager) Release() {
	m.mu.Lock()
	if m.toDiscard > 0 {
		m.toDiscard--
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.tokens <- struct{}{}
}

// Limit returns the current concurrency limit.
func (m *ConcurrencyManager) Limit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// RecordResult records one upstream call outcome.
func (m *ConcurrencyManager) RecordResult(success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples.Value = sample{at: time.Now(), success: success, latency: latency}
	m.samples = m.samples.Next()
	if m.filled < sampleWindow {
		m.filled++
	}
}

// Close stops the background adjustment loop.
func (m *ConcurrencyManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
	})
}

func (m *ConcurrencyManager) adjustLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(adjustInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.adjust()
		}
	}
}

func (m *ConcurrencyManager) adjust() {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate, avgLatency, n := m.rollingStatsLocked()
	if n == 0 {
		return
	}

	oldLimit := m.limit
	switch {
	case successRate > successThreshold && avgLatency < latencyGoodMillis*time.Millisecond && m.limit < m.max:
		m.limit += stepUp
		if m.limit > m.max {
			m.limit = m.max
		}
	case successRate < failureThreshold || avgLatency > latencyBadMillis*time.Millisecond:
		m.limit -= stepDown
		if m.limit < m.min {
			m.limit = m.min
		}
	}

	if m.limit != oldLimit {
		delta := m.limit - oldLimit
		if delta > 0 {
			for i := 0; i < delta; i++ {
				select {
				case m.tokens <- struct{}{}:
				default:
				}
			}
		} else {
			m.toDiscard += -delta
		}
		if m.log != nil {
			m.log.Infof("concurrency limit %d -> %d (success=%.2f latency=%s)",
				oldLimit, m.limit, successRate, avgLatency)
		}
	}
}

func (m *ConcurrencyManager) rollingStatsLocked() (successRate float64, avgLatency time.Duration, n int) {
	cutoff := time.Now().Add(-sampleMaxAge)
	var successes int
	var totalLatency time.Duration
	var count int

	r := m.samples
	for i := 0; i < m.filled; i++ {
		r = r.Prev()
		s, ok := r.Value.(sample)
		if !ok || s.at.Before(cutoff) {
			continue
		}
		count++
		if s.success {
			successes++
		}
		totalLatency += s.latency
	}
	if count == 0 {
		return 0, 0, 0
	}
	return float64(successes) / float64(count), totalLatency / time.Duration(count), count
}
