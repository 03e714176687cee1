// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache implements the process-wide, time-expiring preview cache
// (spec.md §4.2). It is sized by memory pressure, not by entry count: a
// background sweeper drops stale entries on a schedule, and a larger
// fraction is dropped early when the process's heap usage gets high.
package cache

import (
	"runtime"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
)

// Namespaces, one per kind of cached upstream fact (spec.md §4.2).
const (
	NamespacePreview  = "preview"
	NamespaceContent  = "content"
	NamespaceDetails   = "details"
	NamespaceDeployer = "deployer"
)

type entry struct {
	value interface{}
	at    time.Time
}

// Cache is a concurrent-safe, TTL-expiring key/value store keyed by
// "<namespace>:<id>".
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl                time.Duration
	pressureThreshold  float64
	emergencyBytes     uint64
	sweepInterval      time.Duration

	log btclog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Options configures a new Cache. Zero values fall back to the defaults
// named in spec.md §4.2.
type Options struct {
	TTL               time.Duration
	SweepInterval     time.Duration
	PressureThreshold float64 // fraction of heap, e.g. 0.85
	EmergencyBytes    uint64  // hard heap ceiling, e.g. 3 GiB
	Log               btclog.Logger
}

// New constructs a Cache and starts its background sweeper. Call Close to
// stop the sweeper and release resources.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.PressureThreshold <= 0 {
		opts.PressureThreshold = 0.85
	}
	if opts.EmergencyBytes == 0 {
		opts.EmergencyBytes = 3 * 1024 * 1024 * 1024
	}
	c := &Cache{
		entries:           make(map[string]entry),
		ttl:               opts.TTL,
		pressureThreshold: opts.PressureThreshold,
		emergencyBytes:    opts.EmergencyBytes,
		sweepInterval:     opts.SweepInterval,
		log:               opts.Log,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func key(namespace, id string) string {
	return namespace + ":" + id
}

// Get returns the cached value for namespace/id if present and not yet
// expired, discarding it on the way out if it has expired.
func (c *Cache) Get(namespace, id string) (interface{}, bool) {
	k := key(namespace, id)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.at) > c.ttl {
		c.mu.Lock()
		delete(c.entries, k)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under namespace/id, stamped with the current time.
func (c *Cache) Set(namespace, id string, value interface{}) {
	c.mu.Lock()
	c.entries[key(namespace, id)] = entry{value: value, at: time.Now()}
	c.mu.Unlock()
}

// Len returns the current entry count, mainly for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
	})
}

func (c *Cache) sweepLoop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked()

	if mem.HeapAlloc > c.emergencyBytes {
		if c.log != nil {
			c.log.Warnf("preview cache: emergency sweep at %d bytes heap, dropping oldest 50%%", mem.HeapAlloc)
		}
		c.evictOldestFractionLocked(0.5)
		return
	}

	heapFraction := heapPressureFraction(&mem, c.emergencyBytes)
	if heapFraction > c.pressureThreshold {
		if c.log != nil {
			c.log.Debugf("preview cache: memory pressure sweep, dropping oldest 25%%")
		}
		c.evictOldestFractionLocked(0.25)
	}
}

// heapPressureFraction approximates "memory pressure" as the fraction of
// the emergency ceiling currently consumed by the heap, since the process
// has no fixed total-memory budget of its own to compare against.
func heapPressureFraction(mem *runtime.MemStats, emergencyBytes uint64) float64 {
	if emergencyBytes == 0 {
		return 0
	}
	return float64(mem.HeapAlloc) / float64(emergencyBytes)
}

func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.at) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// evictOldestFractionLocked drops the oldest ceil(len*fraction) entries by
// insertion/access timestamp. Called with c.mu held.
func (c *Cache) evictOldestFractionLocked(fraction float64) {
	n := len(c.entries)
	if n == 0 {
		return
	}
	toDrop := int(float64(n)*fraction + 0.999999)
	if toDrop <= 0 {
		return
	}

	type keyAt struct {
		key string
		at  time.Time
	}
	ordered := make([]keyAt, 0, n)
	for k, e := range c.entries {
		ordered = append(ordered, keyAt{k, e.at})
	}
	// Partial selection sort for the oldest toDrop entries; the cache is
	// memory-bounded, not cardinality-bounded, so this runs on a sweep
	// interval against whatever size the cache happened to grow to.
	for i := 0; i < toDrop && i < len(ordered); i++ {
		minIdx := i
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].at.Before(ordered[minIdx].at) {
				minIdx = j
			}
		}
		ordered[i], ordered[minIdx] = ordered[minIdx], ordered[i]
		delete(c.entries, ordered[i].key)
	}
}
