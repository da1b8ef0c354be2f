// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/awaybot/internal/model"
)

// Collector はボット全体のPrometheusメトリクスを収集する。
type Collector struct {
	updatesHandled  prometheus.Counter
	updateFailures  prometheus.Counter
	commands        *prometheus.CounterVec
	begins          *prometheus.CounterVec
	closes          *prometheus.CounterVec
	autoCloses      prometheus.Counter
	reconcileLoaded prometheus.Gauge
	sendFailures    prometheus.Counter
	pollLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updatesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awaybot_updates_handled_total",
			Help: "処理した受信アップデートの合計数",
		}),
		updateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awaybot_update_failures_total",
			Help: "処理中にエラーになった受信アップデートの合計数",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awaybot_commands_total",
			Help: "コマンド名別の実行数",
		}, []string{"command"}),
		begins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awaybot_presence_begin_total",
			Help: "在席イベント開始遷移の種別・モード別の合計数",
		}, []string{"kind", "mode"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awaybot_presence_close_total",
			Help: "在席イベントクローズの種別別の合計数",
		}, []string{"kind"}),
		autoCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awaybot_auto_close_total",
			Help: "受信メッセージによる自動クローズの合計数",
		}),
		reconcileLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "awaybot_reconcile_loaded_events",
			Help: "直近のキャッシュ再構築でロードされたオープンイベント数",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awaybot_send_failures_total",
			Help: "送信APIの失敗数",
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "awaybot_poll_cycle_seconds",
			Help:    "1回のロングポーリングサイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.updatesHandled,
		c.updateFailures,
		c.commands,
		c.begins,
		c.closes,
		c.autoCloses,
		c.reconcileLoaded,
		c.sendFailures,
		c.pollLatency,
	)

	return c
}

// RecordUpdateHandled は受信アップデートの処理完了を記録する。
func (c *Collector) RecordUpdateHandled() {
	c.updatesHandled.Inc()
}

// RecordUpdateFailure は受信アップデートの処理失敗を記録する。
func (c *Collector) RecordUpdateFailure() {
	c.updateFailures.Inc()
}

// RecordCommand はコマンドの実行を記録する。
func (c *Collector) RecordCommand(name string) {
	c.commands.WithLabelValues(name).Inc()
}

// RecordBegin は在席イベントの開始遷移を記録する。
func (c *Collector) RecordBegin(kind model.EventKind, mode model.BeginMode) {
	c.begins.WithLabelValues(kind.String(), mode.String()).Inc()
}

// RecordClose は在席イベントのクローズを記録する。
func (c *Collector) RecordClose(kind model.EventKind) {
	c.closes.WithLabelValues(kind.String()).Inc()
}

// RecordAutoClose は自動クローズの成功を記録する。
func (c *Collector) RecordAutoClose() {
	c.autoCloses.Inc()
}

// RecordReconcileLoaded はキャッシュ再構築でロードされた件数を記録する。
func (c *Collector) RecordReconcileLoaded(count int) {
	c.reconcileLoaded.Set(float64(count))
}

// RecordSendFailure は送信APIの失敗を記録する。
func (c *Collector) RecordSendFailure() {
	c.sendFailures.Inc()
}

// RecordPollCycle は1回のポーリングサイクルの所要時間を記録する。
func (c *Collector) RecordPollCycle(duration time.Duration) {
	c.pollLatency.Observe(duration.Seconds())
}
