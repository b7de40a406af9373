package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts reconciliation activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	events        *prometheus.CounterVec
	grants        *prometheus.CounterVec
	gateway       *prometheus.CounterVec
	retries       *prometheus.CounterVec
	escalations   prometheus.Counter
	tasksExecuted *prometheus.CounterVec
}

// MustNew registers the collectors on reg and panics on a registration
// conflict. Tests pass a fresh prometheus.NewRegistry().
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "events_total",
			Help:      "Lifecycle events handled by the reconciliation engine.",
		}, []string{"event", "outcome"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "grant_mutations_total",
			Help:      "Calls into the membership grant primitive.",
		}, []string{"op", "result"}),
		gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "gateway_cancellations_total",
			Help:      "Remote cancellation requests sent to payment gateways.",
		}, []string{"gateway", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "retries_scheduled_total",
			Help:      "Deferred re-evaluations enqueued.",
		}, []string{"kind"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "retry_escalations_total",
			Help:      "Orders whose payment retries were exhausted.",
		}),
		tasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership_sync",
			Name:      "scheduled_tasks_executed_total",
			Help:      "Scheduled tasks fired by the worker.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(m.events, m.grants, m.gateway, m.retries, m.escalations, m.tasksExecuted)
	return m
}

func (m *Metrics) Event(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Grant(op string, err error) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) GatewayCancel(gatewayID string, err error) {
	if m == nil {
		return
	}
	m.gateway.WithLabelValues(gatewayID, result(err)).Inc()
}

func (m *Metrics) RetryScheduled(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

func (m *Metrics) Escalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

func (m *Metrics) TaskExecuted(kind string, err error) {
	if m == nil {
		return
	}
	m.tasksExecuted.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
