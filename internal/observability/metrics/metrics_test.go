package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestFunnelMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFunnelMetrics(reg)

	m.ObserveLeadSubmission("success", "verification")
	m.ObserveLeadSubmission("success", "verification")
	m.ObserveLeadSubmission("network", "")
	m.ObserveSubmitLatency("success", 0.2)
	m.ObserveOTP("send", "ok")
	m.ObservePayment("callback", "done")
	m.ObserveUpstream("send-message", "200", 0.1)

	if got := counterValue(t, reg, "inlane_funnel_lead_submissions_total", map[string]string{"outcome": "success", "next": "verification"}); got != 2 {
		t.Fatalf("expected 2 successful submissions, got %v", got)
	}
	if got := counterValue(t, reg, "inlane_funnel_otp_total", map[string]string{"action": "send", "result": "ok"}); got != 1 {
		t.Fatalf("expected 1 otp send, got %v", got)
	}
	if got := counterValue(t, reg, "inlane_funnel_payment_total", map[string]string{"stage": "callback", "result": "done"}); got != 1 {
		t.Fatalf("expected 1 payment callback, got %v", got)
	}
}

func TestFunnelMetricsNilSafe(t *testing.T) {
	var m *FunnelMetrics
	m.ObserveLeadSubmission("success", "submitted")
	m.ObserveSubmitLatency("success", 0.1)
	m.ObserveOTP("verify", "invalid")
	m.ObservePayment("initiate", "error")
	m.ObserveUpstream("verify-payment", "error", 0.1)
}
