package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

// ErrorCounter counts gateway requests and background failures. It is a
// diagnostics sink, so it sees every request breadcrumb and every report.
type ErrorCounter struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewErrorCounter creates the counters. Register them with Register.
func NewErrorCounter() *ErrorCounter {
	return &ErrorCounter{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tmobile_gateway_requests_total",
			Help: "Gateway HTTP requests attempted, by method",
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tmobile_gateway_errors_total",
			Help: "Background gateway failures, by kind",
		}, []string{"kind"}),
	}
}

// Register adds the counters to reg.
func (c *ErrorCounter) Register(reg prometheus.Registerer) error {
	if err := reg.Register(c.requests); err != nil {
		return err
	}
	return reg.Register(c.errors)
}

func (c *ErrorCounter) Notify(err error) {
	if err == nil {
		return
	}
	c.errors.WithLabelValues(gateway.KindOf(err).String()).Inc()
}

func (c *ErrorCounter) AddBreadcrumb(_ string, attrs map[string]string) {
	method, ok := attrs["method"]
	if !ok {
		return
	}
	c.requests.WithLabelValues(method).Inc()
}
