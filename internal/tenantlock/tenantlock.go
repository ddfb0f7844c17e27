// Package tenantlock serializes work per tenant.
package tenantlock

import "sync"

// Locker hands out one mutex per key. Entries are never removed; the number of
// tenants served by one process is small.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
