package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records dispatcher throughput.
type OutboxMetrics struct {
	dispatched prometheus.Counter
	failed     prometheus.Counter
	backlog    prometheus.Gauge
}

// NewOutboxMetrics registers dispatcher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "outbox_dispatched_total",
		Help:      "Outbox events delivered successfully.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "outbox_failed_total",
		Help:      "Outbox delivery attempts that failed.",
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "outbox_backlog",
		Help:      "Pending outbox rows seen in the last poll.",
	})
	reg.MustRegister(dispatched, failed, backlog)
	return &OutboxMetrics{
		dispatched: dispatched,
		failed:     failed,
		backlog:    backlog,
	}
}

// IncDispatched counts one delivered event.
func (o *OutboxMetrics) IncDispatched() {
	if o == nil || o.dispatched == nil {
		return
	}
	o.dispatched.Inc()
}

// IncFailed counts one failed delivery attempt.
func (o *OutboxMetrics) IncFailed() {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.Inc()
}

// SetBacklog records how many pending rows the last poll returned.
func (o *OutboxMetrics) SetBacklog(n int) {
	if o == nil || o.backlog == nil {
		return
	}
	o.backlog.Set(float64(n))
}
