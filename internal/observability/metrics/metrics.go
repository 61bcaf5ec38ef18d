package metrics

import "github.com/prometheus/client_golang/prometheus"

// ClinicMetrics exposes counters/histograms for booking and payment flows.
type ClinicMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	stkPushTotal    *prometheus.CounterVec
	callbacksTotal  *prometheus.CounterVec
	callbackLatency *prometheus.HistogramVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalink",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total booking attempts",
		}, []string{"mode", "outcome"}),
		stkPushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalink",
			Subsystem: "payments",
			Name:      "stk_push_total",
			Help:      "Total STK push initiations",
		}, []string{"outcome"}),
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalink",
			Subsystem: "payments",
			Name:      "callbacks_total",
			Help:      "Total gateway callbacks by result",
		}, []string{"result"}),
		callbackLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dentalink",
			Subsystem: "payments",
			Name:      "callback_latency_seconds",
			Help:      "Latency of callback processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.stkPushTotal, m.callbacksTotal, m.callbackLatency)
	return m
}

func (m *ClinicMetrics) ObserveBooking(mode, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *ClinicMetrics) ObserveSTKPush(outcome string) {
	if m == nil {
		return
	}
	m.stkPushTotal.WithLabelValues(outcome).Inc()
}

func (m *ClinicMetrics) ObserveCallback(result string, seconds float64) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(result).Inc()
	m.callbackLatency.WithLabelValues(result).Observe(seconds)
}
