package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts gate decisions. A nil *Metrics records nothing.
type Metrics struct {
	accepted prometheus.Counter
	rejected *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "configsvc_auth_accepted_total",
			Help: "Requests that passed the service auth gate.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "configsvc_auth_rejected_total",
			Help: "Requests refused by the service auth gate, by rule and kind.",
		}, []string{"rule", "kind"}),
	}
	reg.MustRegister(m.accepted, m.rejected)
	return m
}

func (m *Metrics) observe(rule string, k Kind) {
	if m == nil {
		return
	}
	if rule == "" {
		m.accepted.Inc()
		return
	}
	m.rejected.WithLabelValues(rule, k.String()).Inc()
}
