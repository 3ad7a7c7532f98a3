package main

import "github.com/prometheus/client_golang/prometheus"

const metricPrefix = "smartbin_ingestor_"

// Metrics drží Prometheus metriky ingestoru. Nil *Metrics je platný
// a nic nedělá (testy metriky neřeší).
type Metrics struct {
	messages       *prometheus.CounterVec
	persists       *prometheus.CounterVec
	readings       *prometheus.CounterVec
	liveBins       prometheus.Gauge
	inflight       prometheus.Gauge
	connectionLost prometheus.Counter
}

// NewMetrics vytvoří metriky a zaregistruje je do reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "messages_total",
				Help: "Messages received from the broker by result",
			},
			[]string{"result"},
		),
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persist_total",
				Help: "Reading writes to Postgres by result",
			},
			[]string{"result"},
		),
		readings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "flushed_readings_total",
				Help: "Readings evaluated at flush time by outcome",
			},
			[]string{"outcome"},
		),
		liveBins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "live_bins",
			Help: "Bins currently present in the live snapshot",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "persist_inflight",
			Help: "Reading writes currently in flight",
		}),
		connectionLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "connection_lost_total",
			Help: "Broker connection losses",
		}),
	}
	reg.MustRegister(m.messages, m.persists, m.readings, m.liveBins, m.inflight, m.connectionLost)
	return m
}

func (m *Metrics) MessageAccepted() {
	if m == nil {
		return
	}
	m.messages.WithLabelValues("accepted").Inc()
}

func (m *Metrics) MessageRejected() {
	if m == nil {
		return
	}
	m.messages.WithLabelValues("rejected").Inc()
}

func (m *Metrics) PersistStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) PersistDone(err error) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	if err != nil {
		m.persists.WithLabelValues("error").Inc()
		return
	}
	m.persists.WithLabelValues("success").Inc()
}

func (m *Metrics) Flushed(forwarded, suppressed int) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues("forwarded").Add(float64(forwarded))
	m.readings.WithLabelValues("suppressed").Add(float64(suppressed))
}

func (m *Metrics) LiveBins(n int) {
	if m == nil {
		return
	}
	m.liveBins.Set(float64(n))
}

func (m *Metrics) ConnectionLost() {
	if m == nil {
		return
	}
	m.connectionLost.Inc()
}
