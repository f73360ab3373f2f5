package netops

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
	accepts    prometheus.Gauge
	open       prometheus.GaugeFunc
}

func newMetrics(o *Ops) *metrics {
	return &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops",
			Name:      "operations_total",
			Help:      "Socket operations by verb, transport and result kind.",
		}, []string{"op", "transport", "result"}),
		accepts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netops",
			Name:      "pending_accepts",
			Help:      "Accept calls currently parked on a listener.",
		}),
		open: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "netops",
			Name:      "open_resources",
			Help:      "Resources currently held in the table.",
		}, func() float64 { return float64(o.table.Len()) }),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.operations, m.accepts, m.open} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe records the outcome of one verb call.
func (m *metrics) observe(op string, t Transport, err error) {
	result := "ok"
	if err != nil {
		if k := KindOf(err); k != "" {
			result = string(k)
		} else {
			result = "error"
		}
	}
	m.operations.WithLabelValues(op, string(t), result).Inc()
}
