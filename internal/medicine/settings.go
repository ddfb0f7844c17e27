package medicine

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pathakanu/medguardian/internal/errs"
)

// MinutesPerDay bounds time-of-day arithmetic.
const MinutesPerDay = 24 * 60

// Window is a meal's start and end time of day, HH:MM.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Settings is the tenant's meal-window configuration.
type Settings struct {
	Version                string          `json:"version"`
	MealTimes              map[Meal]Window `json:"meal_times"`
	Timezone               string          `json:"timezone"`
	ReminderAdvanceMinutes int             `json:"reminder_advance_minutes"`
	Trackers               []string        `json:"trackers"`
	UpdatedAt              *time.Time      `json:"updated_at,omitempty"`
	UpdatedBy              string          `json:"updated_by,omitempty"`
}

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

// ParseClock converts HH:MM to minutes since midnight.
func ParseClock(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	if h > 23 || mins > 59 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return h*60 + mins, nil
}

// FormatClock renders minutes since midnight as HH:MM, wrapping modulo 24h.
func FormatClock(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Validate rejects malformed times, inverted windows, unknown timezones and
// out-of-range advance minutes.
func (s Settings) Validate() error {
	for _, meal := range Meals {
		w, ok := s.MealTimes[meal]
		if !ok {
			return errs.Invalid("meal_times."+string(meal), "missing")
		}
		start, err := ParseClock(w.Start)
		if err != nil {
			return errs.Invalid("meal_times."+string(meal)+".start", "%v", err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return errs.Invalid("meal_times."+string(meal)+".end", "%v", err)
		}
		if end <= start {
			return errs.Invalid("meal_times."+string(meal), "end %s must be after start %s", w.End, w.Start)
		}
	}
	for meal := range s.MealTimes {
		if !knownMeal(meal) {
			return errs.Invalid("meal_times."+string(meal), "unknown meal")
		}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		return errs.Invalid("timezone", "unknown timezone %q", s.Timezone)
	}
	if s.ReminderAdvanceMinutes < 0 || s.ReminderAdvanceMinutes > 60 {
		return errs.Invalid("reminder_advance_minutes", "must be between 0 and 60")
	}
	return nil
}

// Location loads the tenant timezone, falling back to UTC for a value that
// no longer resolves.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || s.Timezone == "" {
		return time.UTC
	}
	return loc
}

// IsTracker reports whether id holds tracker privilege in this tenant.
func (s Settings) IsTracker(id string) bool {
	for _, t := range s.Trackers {
		if t == id {
			return true
		}
	}
	return false
}

func knownMeal(m Meal) bool {
	for _, known := range Meals {
		if m == known {
			return true
		}
	}
	return false
}
