package activity

import (
	"context"
	"math"
	"time"
)

// Summary is the per-day compliance report sent to trackers.
type Summary struct {
	Date   string `json:"date"`
	Taken  int    `json:"taken"`
	Missed int    `json:"missed"`
	Total  int    `json:"total"`
	// Compliance is the rounded taken percentage, or -1 when Total is zero.
	Compliance int `json:"compliance"`
}

// HasData reports whether any dose was counted.
func (s Summary) HasData() bool { return s.Total > 0 }

// DailySummary counts the day's taken and missed entries.
//
// Only the exact medicine_taken and medicine_missed kinds are counted, so
// verified, late and manual variants are left out. This undercounts and is
// pending product review; do not widen it here.
func (l *Log) DailySummary(ctx context.Context, tenantID, date string, loc *time.Location) (Summary, error) {
	entries, err := l.Entries(ctx, tenantID, Filter{
		Kinds:    []Kind{KindTaken, KindMissed},
		Date:     date,
		Location: loc,
	})
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Date: date, Compliance: -1}
	for _, e := range entries {
		switch e.Kind {
		case KindTaken:
			s.Taken++
		case KindMissed:
			s.Missed++
		}
	}
	s.Total = s.Taken + s.Missed
	if s.Total > 0 {
		s.Compliance = int(math.Round(float64(s.Taken) / float64(s.Total) * 100))
	}
	return s, nil
}
