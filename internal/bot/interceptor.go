package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/awaybot/internal/cache"
	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/presence"
)

// AutoCloseRecorder は自動クローズのメトリクス記録インターフェース。
type AutoCloseRecorder interface {
	RecordAutoClose()
}

// Interceptor は受信メッセージをきっかけにオープンな在席イベントを
// 自動クローズする。メッセージを送ったということは離席が終わった
// ということなので、キャッシュがアクティブを示すユーザーのイベントを
// クローズし、経過時間入りの通知テキストを組み立てる。
//
// 自動クローズの失敗がメッセージ処理（コマンド実行など）を妨げることは
// ない。ストアの失敗はログに残してキャッシュを触らず、次のメッセージで
// 再試行される。
type Interceptor struct {
	svc       *presence.Service
	cache     *cache.PresenceCache
	locks     *presence.KeyedMutex
	formatter *Formatter
	recorder  AutoCloseRecorder
	logger    *slog.Logger
}

// NewInterceptor はInterceptorの新しいインスタンスを生成する。
// recorderはnil可。
func NewInterceptor(
	svc *presence.Service,
	presenceCache *cache.PresenceCache,
	formatter *Formatter,
	recorder AutoCloseRecorder,
	logger *slog.Logger,
) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		svc:       svc,
		cache:     presenceCache,
		locks:     svc.Locks(),
		formatter: formatter,
		recorder:  recorder,
		logger:    logger,
	}
}

// OnMessage はメッセージ送信者のオープンイベントを自動クローズする。
// クローズが発生した場合は通知テキストとtrueを返す。
//
// クローズとキャッシュ無効化はユーザー単位のロックの下で行い、同じ
// ユーザーのbeginと交錯してキャッシュが古いイベントIDを指すことを防ぐ。
func (i *Interceptor) OnMessage(ctx context.Context, from *User) (string, bool) {
	if from == nil {
		return "", false
	}

	unlock := i.locks.Lock(from.ID)
	defer unlock()

	eventID, active := i.cache.Get(from.ID)
	if !active {
		return "", false
	}

	event, err := i.svc.End(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			// キャッシュがストアに存在しないイベントを指していた。
			// ストアが真実なのでキャッシュ側を直し、通知は出さない。
			i.cache.Set(from.ID, false, 0)
			i.logger.Warn("キャッシュが存在しないイベントを指していました",
				slog.Int64("telegram_uid", from.ID),
				slog.Int64("event_id", eventID),
			)
			return "", false
		}

		// ストア障害。キャッシュはアクティブのままにして次のメッセージで再試行する。
		i.logger.Error("在席イベントの自動クローズに失敗しました",
			slog.Int64("telegram_uid", from.ID),
			slog.Int64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	i.cache.Set(from.ID, false, 0)

	if i.recorder != nil {
		i.recorder.RecordAutoClose()
	}
	i.logger.Info("在席イベントを自動クローズしました",
		slog.Int64("telegram_uid", from.ID),
		slog.Int64("event_id", event.ID),
		slog.String("kind", event.Kind.String()),
	)

	text, err := i.formatter.CloseNotification(from.DisplayName(), event)
	if err != nil {
		i.logger.Error("クローズ通知の組み立てに失敗しました",
			slog.Int64("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	return text, true
}
