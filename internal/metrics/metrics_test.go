package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/awaybot/internal/model"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定名のカウンタの合計値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordBegin_IncrementsByKindAndMode は開始遷移カウンタが種別・モード別に増加することを検証する。
func TestRecordBegin_IncrementsByKindAndMode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBegin(model.EventKindSleep, model.BeginModeNew)
	c.RecordBegin(model.EventKindSleep, model.BeginModeContinue)
	c.RecordBegin(model.EventKindWork, model.BeginModeNew)

	if got := counterValue(t, reg, "awaybot_presence_begin_total"); got != 3 {
		t.Errorf("presence_begin_total = %v, want 3", got)
	}

	metrics, _ := reg.Gather()
	for _, mf := range metrics {
		if mf.GetName() != "awaybot_presence_begin_total" {
			continue
		}
		if len(mf.GetMetric()) != 3 {
			t.Errorf("expected 3 label combinations, got %d", len(mf.GetMetric()))
		}
	}
}

// TestRecordAutoClose_IncrementsCounter は自動クローズカウンタが増加することを検証する。
func TestRecordAutoClose_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAutoClose()
	c.RecordAutoClose()

	if got := counterValue(t, reg, "awaybot_auto_close_total"); got != 2 {
		t.Errorf("auto_close_total = %v, want 2", got)
	}
}

// TestRecordCommand_CountsByName はコマンドカウンタが名前別に増加することを検証する。
func TestRecordCommand_CountsByName(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommand("gn")
	c.RecordCommand("gn")
	c.RecordCommand("work")

	if got := counterValue(t, reg, "awaybot_commands_total"); got != 3 {
		t.Errorf("commands_total = %v, want 3", got)
	}
}

// TestRecordReconcileLoaded_SetsGauge は再構築件数ゲージが上書きされることを検証する。
func TestRecordReconcileLoaded_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcileLoaded(5)
	c.RecordReconcileLoaded(2)

	if got := counterValue(t, reg, "awaybot_reconcile_loaded_events"); got != 2 {
		t.Errorf("reconcile_loaded_events = %v, want 2", got)
	}
}

// TestRecordPollCycle_ObservesHistogram はポーリング時間のヒストグラムが記録されることを検証する。
func TestRecordPollCycle_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollCycle(100 * time.Millisecond)
	c.RecordPollCycle(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "awaybot_poll_cycle_seconds" {
			found = true
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		}
	}
	if !found {
		t.Error("awaybot_poll_cycle_seconds metric not found")
	}
}
