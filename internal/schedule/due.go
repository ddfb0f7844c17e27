package schedule

import (
	"time"

	"github.com/pathakanu/medguardian/internal/medicine"
)

// DefaultTolerance is how far from a slot's reminder time a tick still counts
// as due.
const DefaultTolerance = time.Minute

// Due returns active slots whose reminder time lies within tolerance of now.
// now must already be in the tenant timezone. Distances are measured within
// the same calendar day, so a 23:59 slot is not due at 00:00.
func Due(slots []Slot, now time.Time, tolerance time.Duration) []Slot {
	nowMin := now.Hour()*60 + now.Minute()
	tol := int(tolerance / time.Minute)

	var due []Slot
	for _, s := range slots {
		if !s.Active {
			continue
		}
		at, err := medicine.ParseClock(s.ReminderTime)
		if err != nil {
			continue
		}
		diff := nowMin - at
		if diff < 0 {
			diff = -diff
		}
		if diff <= tol {
			due = append(due, s)
		}
	}
	return due
}
