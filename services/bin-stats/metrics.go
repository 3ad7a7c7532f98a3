package main

import "github.com/prometheus/client_golang/prometheus"

const metricPrefix = "smartbin_stats_"

// Metrics drží Prometheus metriky služby. Nil *Metrics nic nedělá.
type Metrics struct {
	refreshes   *prometheus.CounterVec
	latency     prometheus.Histogram
	lastSuccess prometheus.Gauge
	bins        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Aggregate refreshes by result",
			},
			[]string{"result"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "refresh_latency_seconds",
			Help:    "Aggregate refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		bins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "bins",
			Help: "Registered bins in the last computed view",
		}),
	}
	reg.MustRegister(m.refreshes, m.latency, m.lastSuccess, m.bins)
	return m
}

func (m *Metrics) RefreshFailed(seconds float64) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues("error").Inc()
	m.latency.Observe(seconds)
}

func (m *Metrics) RefreshSucceeded(seconds float64, v View) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues("success").Inc()
	m.latency.Observe(seconds)
	m.lastSuccess.Set(float64(v.ComputedAt.Unix()))
	m.bins.Set(float64(v.KPIs.TotalBins))
}
