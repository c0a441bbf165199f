package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics 中继服务的 Prometheus 指标
type Metrics struct {
	Rooms        prometheus.Gauge
	Connections  prometheus.Gauge
	Rejected     prometheus.Counter
	Dropped      *prometheus.CounterVec
	Relayed      *prometheus.CounterVec
	Terminations prometheus.Counter
}

// NewMetrics 创建指标；reg 非空时注册到 reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cudisync_rooms",
			Help: "Rooms currently registered.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cudisync_connections",
			Help: "Connections currently admitted.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cudisync_connections_rejected_total",
			Help: "Connections refused by the per-address cap.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cudisync_messages_dropped_total",
			Help: "Inbound messages dropped without reply.",
		}, []string{"reason"}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cudisync_signals_relayed_total",
			Help: "Signal payloads relayed.",
		}, []string{"mode"}),
		Terminations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cudisync_heartbeat_terminations_total",
			Help: "Connections terminated for missing a heartbeat.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Rooms, m.Connections, m.Rejected, m.Dropped, m.Relayed, m.Terminations)
	}
	return m
}

func (m *Metrics) drop(err error) {
	reason := "unknown_type"
	switch err {
	case ErrRateLimited:
		reason = "rate_limited"
	case ErrMalformed:
		reason = "malformed"
	case ErrForeignApp:
		reason = "foreign_app"
	}
	m.Dropped.WithLabelValues(reason).Inc()
}
