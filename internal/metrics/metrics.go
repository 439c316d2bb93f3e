package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels alert-check runs that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels alert-check runs that failed (store or engine issues).
	OutcomeError = "error"
)

var (
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptpulse",
			Name:      "alert_checks_total",
			Help:      "Total number of alert-check runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	checkDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "promptpulse",
			Name:      "alert_check_seconds",
			Help:      "Alert-check run latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	alertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promptpulse",
			Name:      "alerts_fired_total",
			Help:      "Alert events created, partitioned by rule kind.",
		},
		[]string{"kind"},
	)

	activeRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "promptpulse",
			Name:      "active_rules",
			Help:      "Number of currently active alert rules.",
		},
	)
)

// Register attaches promptpulse collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		checksTotal,
		checkDurationSeconds,
		alertsFiredTotal,
		activeRules,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCheck records an alert-check duration and outcome label.
func ObserveCheck(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	checksTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	checkDurationSeconds.Observe(duration.Seconds())
}

// AlertFired counts one created alert event for the given rule kind.
func AlertFired(kind string) {
	alertsFiredTotal.WithLabelValues(kind).Inc()
}

// SetActiveRules updates the active-rule gauge.
func SetActiveRules(n int) {
	activeRules.Set(float64(n))
}
