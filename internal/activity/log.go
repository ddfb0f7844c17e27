package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/store"
	"github.com/pathakanu/medguardian/internal/tenantlock"
)

// DefaultRetention caps the number of entries kept per tenant.
const DefaultRetention = 1000

type logsDocument struct {
	Version string  `json:"version"`
	Logs    []Entry `json:"logs"`
}

// Log appends entries to the tenant logs document.
type Log struct {
	store     store.DocumentStore
	clock     clock.Clock
	locks     *tenantlock.Locker
	retention int
}

// NewLog creates a Log with the default retention.
func NewLog(s store.DocumentStore, c clock.Clock) *Log {
	return &Log{store: s, clock: c, locks: tenantlock.New(), retention: DefaultRetention}
}

// Record prepends ev to the tenant's log and truncates the oldest entries past
// the retention cap.
func (l *Log) Record(ctx context.Context, tenantID string, ev Event) (Entry, error) {
	entry := ev.entry()
	entry.ID = uuid.NewString()
	entry.Timestamp = l.clock.Now().UTC()

	unlock := l.locks.Lock(tenantID)
	defer unlock()

	var doc logsDocument
	if err := store.ReadJSON(ctx, l.store, tenantID, store.KeyLogs, &doc); err != nil {
		return Entry{}, err
	}
	doc.Version = "1.0"
	doc.Logs = append([]Entry{entry}, doc.Logs...)
	if len(doc.Logs) > l.retention {
		doc.Logs = doc.Logs[:l.retention]
	}
	if err := store.WriteJSON(ctx, l.store, tenantID, store.KeyLogs, doc); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Filter narrows Entries. Zero values match everything.
type Filter struct {
	Kinds    []Kind
	TargetID string
	// Date is a YYYY-MM-DD calendar date evaluated in Location.
	Date     string
	Location *time.Location
	Limit    int
}

func (f Filter) match(e Entry) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Date != "" {
		loc := f.Location
		if loc == nil {
			loc = time.UTC
		}
		if e.Timestamp.In(loc).Format(time.DateOnly) != f.Date {
			return false
		}
	}
	return true
}

// Entries returns matching entries newest-first.
func (l *Log) Entries(ctx context.Context, tenantID string, f Filter) ([]Entry, error) {
	var doc logsDocument
	if err := store.ReadJSON(ctx, l.store, tenantID, store.KeyLogs, &doc); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(doc.Logs))
	for _, e := range doc.Logs {
		if !f.match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
