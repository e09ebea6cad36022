package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anyproto/gcm-dispatcher/classifier"
)

type metrics struct {
	sent         *prometheus.CounterVec
	tokens       prometheus.Counter
	retries      *prometheus.CounterVec
	remediations *prometheus.CounterVec
	duration     prometheus.Summary
}

func newMetrics() metrics {
	return metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcm",
			Subsystem: "dispatcher",
			Name:      "sent_total",
			Help:      "attempts by outcome",
		}, []string{"outcome"}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gcm",
			Subsystem: "dispatcher",
			Name:      "tokens_total",
			Help:      "total count of addressed tokens",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcm",
			Subsystem: "dispatcher",
			Name:      "retries_total",
			Help:      "scheduled retries by reason",
		}, []string{"reason"}),
		remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcm",
			Subsystem: "dispatcher",
			Name:      "token_remediations_total",
			Help:      "token updates and evictions reported by the gateway",
		}, []string{"action"}),
		duration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "gcm",
			Subsystem: "dispatcher",
			Name:      "request_duration_seconds",
			Objectives: map[float64]float64{
				0.5:  0.5,
				0.85: 0.01,
				0.95: 0.0005,
				0.99: 0.0001,
			},
		}),
	}
}

func (m metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(m.sent, m.tokens, m.retries, m.remediations, m.duration)
}

func (m metrics) observe(out classifier.Outcome, tokens int, dur time.Duration) {
	m.sent.WithLabelValues(out.Kind.String()).Inc()
	m.tokens.Add(float64(tokens))
	m.duration.Observe(dur.Seconds())
	if out.Updated > 0 {
		m.remediations.WithLabelValues("update").Add(float64(out.Updated))
	}
	if out.Evicted > 0 {
		m.remediations.WithLabelValues("evict").Add(float64(out.Evicted))
	}
	if out.Kind == classifier.KindRetry {
		m.retries.WithLabelValues(out.Reason).Inc()
	}
}
