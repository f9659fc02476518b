package monitoring

import "github.com/prometheus/client_golang/prometheus"

const namespace = "gamespace"

// Metrics holds the session counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registered      prometheus.Counter
	Active          prometheus.Gauge
	Teardowns       *prometheus.CounterVec
	BindAttempts    prometheus.Counter
	ModeActivations *prometheus.CounterVec
	Recoveries      *prometheus.CounterVec
	Restarts        prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_registered_total",
			Help: "Number of completed session registrations.",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_active",
			Help: "1 while a game session is registered.",
		}),
		Teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "teardowns_total",
			Help: "Number of orchestrator teardowns by reason.",
		}, []string{"reason"}),
		BindAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "overlay_bind_attempts_total",
			Help: "Number of overlay bind requests.",
		}),
		ModeActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "mode_selections_total",
			Help: "Mode selection outcomes.",
		}, []string{"result"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "recoveries_total",
			Help: "Crash recovery attempts by result.",
		}, []string{"result"}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orchestrator_restarts_total",
			Help: "Number of sticky orchestrator restarts.",
		}),
	}
	reg.MustRegister(m.Registered, m.Active, m.Teardowns, m.BindAttempts, m.ModeActivations, m.Recoveries, m.Restarts)
	return m
}

func (m *Metrics) SessionRegistered() {
	if m == nil {
		return
	}
	m.Registered.Inc()
	m.Active.Set(1)
}

func (m *Metrics) SessionUnregistered() {
	if m == nil {
		return
	}
	m.Active.Set(0)
}

func (m *Metrics) Teardown(reason string) {
	if m == nil {
		return
	}
	m.Teardowns.WithLabelValues(reason).Inc()
}

func (m *Metrics) BindAttempt() {
	if m == nil {
		return
	}
	m.BindAttempts.Inc()
}

func (m *Metrics) ModeSelection(result string) {
	if m == nil {
		return
	}
	m.ModeActivations.WithLabelValues(result).Inc()
}

func (m *Metrics) Recovery(result string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Restart() {
	if m == nil {
		return
	}
	m.Restarts.Inc()
}
