package reminder

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a sent-today entry is kept.
const DefaultDedupTTL = 24 * time.Hour

type dedupKey struct {
	tenantID string
	slotKey  string
	date     string
}

// Dedup remembers which slots were sent on which tenant-local date.
type Dedup struct {
	mu   sync.Mutex
	ttl  time.Duration
	sent map[dedupKey]time.Time
}

// NewDedup creates an empty Dedup. A ttl of zero selects DefaultDedupTTL.
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Dedup{ttl: ttl, sent: make(map[dedupKey]time.Time)}
}

// Seen reports whether the slot was already sent on date.
func (d *Dedup) Seen(tenantID, slotKey, date string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sent[dedupKey{tenantID, slotKey, date}]
	return ok
}

// Mark records the slot as sent on date at time at.
func (d *Dedup) Mark(tenantID, slotKey, date string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent[dedupKey{tenantID, slotKey, date}] = at
}

// Sweep drops entries older than the TTL and returns how many were removed.
func (d *Dedup) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for k, at := range d.sent {
		if now.Sub(at) > d.ttl {
			delete(d.sent, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}
