package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// updatesAPI はPollerが使う受信系APIのインターフェース。*Clientが満たす。
type updatesAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// PollRecorder はポーリングサイクルのメトリクス記録インターフェース。
type PollRecorder interface {
	RecordPollCycle(duration time.Duration)
}

// Poller はgetUpdatesのロングポーリングループを実行する。
// オフセットは処理済みアップデートの最大update_id+1を保持し、
// 同じアップデートを二度処理しないようにする。
type Poller struct {
	api      updatesAPI
	handler  *UpdateHandler
	timeout  time.Duration
	interval time.Duration
	recorder PollRecorder
	logger   *slog.Logger

	offset int64
}

// NewPoller はPollerの新しいインスタンスを生成する。
// timeoutはロングポーリングの待機時間、intervalはエラー後の再試行間隔。
// recorderはnil可。
func NewPoller(
	api updatesAPI,
	handler *UpdateHandler,
	timeout time.Duration,
	interval time.Duration,
	recorder PollRecorder,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		api:      api,
		handler:  handler,
		timeout:  timeout,
		interval: interval,
		recorder: recorder,
		logger:   logger,
	}
}

// Run はコンテキストがキャンセルされるまでポーリングを継続する。
// getUpdatesの失敗は一時的なネットワーク障害として扱い、interval待って
// 再試行する。アップデート処理自体はHandlerが失敗を吸収するため、
// このループが処理エラーで止まることはない。
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("ポーリングを開始しました",
		slog.Duration("timeout", p.timeout),
	)

	for {
		if ctx.Err() != nil {
			p.logger.Info("ポーリングを停止しました")
			return
		}

		start := time.Now()
		updates, err := p.api.GetUpdates(ctx, p.offset, p.timeout)
		if p.recorder != nil {
			p.recorder.RecordPollCycle(time.Since(start))
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				p.logger.Info("ポーリングを停止しました")
				return
			}
			p.logger.Error("アップデートの取得に失敗しました",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				p.logger.Info("ポーリングを停止しました")
				return
			case <-time.After(p.interval):
			}
			continue
		}

		for _, update := range updates {
			p.handler.Handle(ctx, update)
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
		}
	}
}
