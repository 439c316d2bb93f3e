package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register must tolerate existing collectors: %v", err)
	}
}

func TestObserveCheckNormalisesLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	ObserveCheck(50*time.Millisecond, OutcomeSuccess)
	ObserveCheck(100*time.Millisecond, OutcomeError)
	ObserveCheck(-time.Second, "weird") // unknown outcome counts as success

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "promptpulse_alert_checks_total" {
			found = true
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total < 3 {
				t.Fatalf("checks total = %v, want at least 3", total)
			}
		}
	}
	if !found {
		t.Fatalf("promptpulse_alert_checks_total not exposed")
	}
}
