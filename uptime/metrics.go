package uptime

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments fed by probes and the poller.
// A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	latency       prometheus.Histogram
	storeFailures prometheus.Counter
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptime_probe_requests_total",
				Help: "Probes made, labelled by status class",
			},
			[]string{"status_class"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptime_probe_latency_ms",
			Help:    "Probe latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptime_probe_store_failures_total",
			Help: "Probe results that could not be written to the log",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.latency, m.storeFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeProbe(out Outcome) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(statusClass(out)).Inc()
	m.latency.Observe(float64(out.Latency.Milliseconds()))
}

func (m *Metrics) observeStoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}

// statusClass buckets an outcome: "transport", "logical", or "2xx".."5xx".
func statusClass(out Outcome) string {
	switch {
	case out.StatusCode == 0:
		return "transport"
	case out.StatusCode >= 200 && out.StatusCode <= 299 && out.Error != "":
		return "logical"
	default:
		return strconv.Itoa(out.StatusCode/100) + "xx"
	}
}
