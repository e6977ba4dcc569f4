package ingest

import (
	"context"
	"sync"
	"time"
)

const (
	dedupTTL           = time.Hour
	dedupSweepInterval = time.Hour
)

// DedupFilter is the process-local duplicate guard consulted before every
// ingestion attempt. It suppresses the common case of the same logical
// event arriving twice in quick succession; global exactly-once is the
// claim ledger's conditional write, not this filter. A restart resets it,
// which is an accepted gap.
type DedupFilter struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewDedupFilter() *DedupFilter {
	return &DedupFilter{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// NewDedupFilterWithClock injects the clock so tests control time.
func NewDedupFilterWithClock(now func() time.Time) *DedupFilter {
	return &DedupFilter{
		seen: make(map[string]time.Time),
		now:  now,
	}
}

// Seen reports whether the key was recorded within the TTL, recording it on
// a miss. First caller wins; every later caller within the hour gets true.
func (f *DedupFilter) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if at, ok := f.seen[key]; ok && now.Sub(at) < dedupTTL {
		return true
	}
	f.seen[key] = now
	return false
}

// Sweep drops entries older than the TTL and returns how many were purged.
func (f *DedupFilter) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-dedupTTL)
	purged := 0
	for key, at := range f.seen {
		if at.Before(cutoff) {
			delete(f.seen, key)
			purged++
		}
	}
	return purged
}

// Len reports the live entry count.
func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// StartCleanupRoutine runs the hourly sweep until ctx is cancelled.
func (f *DedupFilter) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(dedupSweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Sweep()
			}
		}
	}()
}
