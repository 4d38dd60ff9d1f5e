package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbxark/stepform/wizard"
)

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New(reg, "test")
	if err != nil {
		t.Fatal(err)
	}

	o.AdvanceFinished(0, wizard.OutcomeInvalid, time.Millisecond)
	o.AdvanceFinished(0, wizard.OutcomeSaved, 20*time.Millisecond)
	o.AdvanceFinished(1, wizard.OutcomeFailed, 30*time.Millisecond)
	o.AdvanceFinished(1, wizard.OutcomeIgnored, 0)
	o.UploadStaged("logo")
	o.UploadStaged("logo")
	o.DraftReconciled(3, 1, nil)
	o.DraftReconciled(0, 0, errors.New("offline"))

	if got := testutil.ToFloat64(o.advances.WithLabelValues("0", "invalid")); got != 1 {
		t.Errorf("invalid advances = %v", got)
	}
	if got := testutil.ToFloat64(o.advances.WithLabelValues("1", "ignored")); got != 1 {
		t.Errorf("ignored advances = %v", got)
	}
	if got := testutil.CollectAndCount(o.saveLatency); got != 2 {
		t.Errorf("latency series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(o.staged.WithLabelValues("logo")); got != 2 {
		t.Errorf("staged = %v", got)
	}
	if got := testutil.ToFloat64(o.reconciled.WithLabelValues("adopted")); got != 3 {
		t.Errorf("adopted = %v", got)
	}
	if got := testutil.ToFloat64(o.fetchErrors); got != 1 {
		t.Errorf("fetch errors = %v", got)
	}

	if _, err := New(reg, "test"); err == nil {
		t.Error("registering twice should fail")
	}
}
