package invoice

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *invoiceMetrics
)

type invoiceMetrics struct {
	transitions *prometheus.CounterVec
}

func getMetrics() *invoiceMetrics {
	metricsInitOnce.Do(func() {
		m := &invoiceMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_invoice_transitions_total",
				Help: "Committed invoice state changes. An empty from is a new invoice.",
			}, []string{"from", "to"}),
		}
		prometheus.MustRegister(m.transitions)
		sharedMetrics = m
	})
	return sharedMetrics
}
