package roster

import (
	"sync"
	"time"
)

// snapshotCache holds short-lived copies of a sheet's rows for the
// high-traffic search path. It is display convenience only: the write path
// never consults it, so a stale snapshot can never corrupt a check-in
// decision. Key cardinality equals the number of active events, so there is
// no eviction beyond overwrite-on-refresh.
type snapshotCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]snapshotEntry
}

type snapshotEntry struct {
	rows      [][]string
	fetchedAt time.Time
}

func newSnapshotCache(ttl time.Duration, now func() time.Time) *snapshotCache {
	return &snapshotCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]snapshotEntry),
	}
}

func (c *snapshotCache) get(sheetID string) ([][]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sheetID]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.rows, true
}

func (c *snapshotCache) put(sheetID string, rows [][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sheetID] = snapshotEntry{rows: rows, fetchedAt: c.now()}
}
