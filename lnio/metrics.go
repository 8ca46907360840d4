package lnio

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *bridgeMetrics
)

type bridgeMetrics struct {
	active prometheus.Gauge
	setups *prometheus.CounterVec
	copied *prometheus.CounterVec
}

func getMetrics() *bridgeMetrics {
	metricsInitOnce.Do(func() {
		m := &bridgeMetrics{
			active: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "hodl_bridge_active",
				Help: "Stream bridges with a live copy task.",
			}),
			setups: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_bridge_setups_total",
				Help: "Bridge setup attempts by result.",
			}, []string{"result"}),
			copied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_bridge_bytes_total",
				Help: "Bytes copied through stream bridges by direction.",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(m.active, m.setups, m.copied)
		sharedMetrics = m
	})
	return sharedMetrics
}
