// Package metrics turns bus events into Prometheus series.
//
// Collectors are registered on a caller-supplied registry so tests and the
// serve command each get their own. [Metrics.Handler] exposes the registry
// over HTTP.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lkmninja/aaflbot/internal/event"
)

const namespace = "aaflbot"

var durationBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 3600, 6 * 3600, 24 * 3600}

// Metrics holds the league collectors.
type Metrics struct {
	registry *prometheus.Registry

	workflows        *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	capExceeded      *prometheus.CounterVec
	approvalsPending prometheus.Gauge
	approvals        *prometheus.CounterVec
	commands         *prometheus.CounterVec

	mu      sync.Mutex
	pending map[string]bool
}

// New creates and registers the collectors on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		pending:  make(map[string]bool),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Trades and signings by final outcome",
		}, []string{"kind", "outcome"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Time from the start of a trade or signing to its outcome",
			Buckets:   durationBuckets,
		}, []string{"kind"}),
		capExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_cap_exceeded_total",
			Help:      "Roster mutations that left a team over its star cap",
		}, []string{"team"}),
		approvalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "approvals_pending",
			Help:      "Consents and votes currently waiting for an outcome",
		}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Resolved consents and votes by mode and outcome",
		}, []string{"mode", "outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands by name and error kind",
		}, []string{"command", "error_kind"}),
	}

	collectors := []prometheus.Collector{
		m.workflows, m.workflowDuration, m.capExceeded,
		m.approvalsPending, m.approvals, m.commands,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Attach subscribes to every bus event and returns a function that removes
// the subscription.
func (m *Metrics) Attach(bus *event.Bus) (detach func()) {
	id := bus.SubscribeAll(m.Observe)
	return func() { bus.Unsubscribe(id) }
}

// Observe records one event.
func (m *Metrics) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.TradeFinishedEvent:
		m.workflows.WithLabelValues("trade", ev.State).Inc()
		m.workflowDuration.WithLabelValues("trade").Observe(ev.Duration.Seconds())
	case event.SigningFinishedEvent:
		m.workflows.WithLabelValues("signing", ev.State).Inc()
		m.workflowDuration.WithLabelValues("signing").Observe(ev.Duration.Seconds())
	case event.CapExceededEvent:
		m.capExceeded.WithLabelValues(ev.Team).Inc()
	case event.ApprovalRequestedEvent:
		m.mu.Lock()
		if !m.pending[ev.ApprovalID] {
			m.pending[ev.ApprovalID] = true
			m.approvalsPending.Inc()
		}
		m.mu.Unlock()
	case event.ApprovalResolvedEvent:
		m.mu.Lock()
		if m.pending[ev.ApprovalID] {
			delete(m.pending, ev.ApprovalID)
			m.approvalsPending.Dec()
		}
		m.mu.Unlock()
		m.approvals.WithLabelValues(ev.Mode, ev.Outcome).Inc()
	case event.CommandExecutedEvent:
		kind := ev.ErrorKind
		if kind == "" {
			kind = "none"
		}
		m.commands.WithLabelValues(ev.Command, kind).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
