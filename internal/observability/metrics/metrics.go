package metrics

import "github.com/prometheus/client_golang/prometheus"

// FunnelMetrics exposes counters/histograms for each funnel step.
type FunnelMetrics struct {
	leadSubmissions *prometheus.CounterVec
	submitLatency   *prometheus.HistogramVec
	otpTotal        *prometheus.CounterVec
	paymentTotal    *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

func NewFunnelMetrics(reg prometheus.Registerer) *FunnelMetrics {
	m := &FunnelMetrics{
		leadSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inlane",
			Subsystem: "funnel",
			Name:      "lead_submissions_total",
			Help:      "Lead form submissions by outcome and next step",
		}, []string{"outcome", "next"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inlane",
			Subsystem: "funnel",
			Name:      "lead_submit_seconds",
			Help:      "Latency of lead inserts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		otpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inlane",
			Subsystem: "funnel",
			Name:      "otp_total",
			Help:      "OTP sends and verifications by result",
		}, []string{"action", "result"}),
		paymentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inlane",
			Subsystem: "funnel",
			Name:      "payment_total",
			Help:      "Payment initiations and callbacks by result",
		}, []string{"stage", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inlane",
			Subsystem: "funnel",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of hosted function calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.leadSubmissions, m.submitLatency, m.otpTotal, m.paymentTotal, m.upstreamLatency)
	return m
}

// ObserveLeadSubmission records one submit attempt. outcome is one of
// success, invalid, rejected, network.
func (m *FunnelMetrics) ObserveLeadSubmission(outcome, next string) {
	if m == nil {
		return
	}
	m.leadSubmissions.WithLabelValues(outcome, next).Inc()
}

func (m *FunnelMetrics) ObserveSubmitLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.submitLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *FunnelMetrics) ObserveOTP(action, result string) {
	if m == nil {
		return
	}
	m.otpTotal.WithLabelValues(action, result).Inc()
}

func (m *FunnelMetrics) ObservePayment(stage, result string) {
	if m == nil {
		return
	}
	m.paymentTotal.WithLabelValues(stage, result).Inc()
}

func (m *FunnelMetrics) ObserveUpstream(function, status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(function, status).Observe(seconds)
}
