// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the reminder engine counters.
type Metrics struct {
	Delivered        prometheus.Counter
	DedupSkipped     prometheus.Counter
	Responses        *prometheus.CounterVec
	Escalations      prometheus.Counter
	Verifications    *prometheus.CounterVec
	StaleTransitions prometheus.Counter
	LowStockAlerts   prometheus.Counter
	TickDuration     prometheus.Histogram
}

// NewMetrics registers the collectors with the default registry once and
// returns the shared instance.
//
// Metrics:
//   - reminder_delivered_total
//   - reminder_dedup_skipped_total
//   - reminder_responses_total{action}
//   - reminder_escalations_total
//   - reminder_verifications_total{outcome}
//   - reminder_stale_transitions_total
//   - inventory_low_stock_alerts_total
//   - reminder_tick_duration_seconds
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Delivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reminder_delivered_total",
				Help: "Total number of reminders delivered to targets",
			}),
			DedupSkipped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reminder_dedup_skipped_total",
				Help: "Total number of due slots skipped because they were already sent today",
			}),
			Responses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reminder_responses_total",
					Help: "Total number of accepted target responses",
				},
				[]string{"action"}, // taken, missed, snooze
			),
			Escalations: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reminder_escalations_total",
				Help: "Total number of reminders escalated to trackers",
			}),
			Verifications: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reminder_verifications_total",
					Help: "Total number of tracker verifications",
				},
				[]string{"outcome"}, // taken, late, missed
			),
			StaleTransitions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reminder_stale_transitions_total",
				Help: "Total number of responses or verifications ignored as stale",
			}),
			LowStockAlerts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "inventory_low_stock_alerts_total",
				Help: "Total number of low-stock alerts emitted",
			}),
			TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "reminder_tick_duration_seconds",
				Help:    "Duration of one tenant tick in seconds",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return globalMetrics
}
