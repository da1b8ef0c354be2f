// Package presence は在席イベントのドメインロジックを提供する。
// begin / continue / end の状態遷移と、ストアとキャッシュの整合性維持を担う。
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/awaybot/internal/cache"
	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/repository"
)

// Recorder は在席遷移のメトリクス記録インターフェース。
type Recorder interface {
	RecordBegin(kind model.EventKind, mode model.BeginMode)
	RecordClose(kind model.EventKind)
	RecordReconcileLoaded(count int)
}

// UserDirectory はユーザーディレクトリへの依存を表すインターフェース。
// directory.Serviceが実装する。
type UserDirectory interface {
	// GetOrCreate はTelegram UIDでユーザーを解決し、未登録なら作成する。
	GetOrCreate(ctx context.Context, telegramUID int64) (*model.User, error)
	// GetByTelegramUID は未登録の場合にmodel.ErrUserNotFoundを返す。
	GetByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error)
}

// Service は在席イベントの状態遷移を調停するサービス層。
//
// 各(ユーザー, 種別)はIdle（オープンイベントなし）とOpen（ended_at未記録の
// イベントあり）の2状態を遷移する。ストアが常に真実であり、キャッシュは
// 遷移の成功後にのみ上書きされる派生ビューに留める。
//
// 同一ユーザーの遷移はKeyedMutexで直列化する。beginと自動クローズが
// 交錯してキャッシュが古いイベントIDを指すことを防ぐためで、ロックの
// 単位はユーザーであり、ストアI/Oはキャッシュ内部のロックの外で行う。
type Service struct {
	directory UserDirectory
	eventRepo repository.PresenceEventRepository
	cache     *cache.PresenceCache
	locks     *KeyedMutex
	recorder  Recorder
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnil可（メトリクスを記録しない）。
func NewService(
	userDirectory UserDirectory,
	eventRepo repository.PresenceEventRepository,
	presenceCache *cache.PresenceCache,
	locks *KeyedMutex,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory: userDirectory,
		eventRepo: eventRepo,
		cache:     presenceCache,
		locks:     locks,
		recorder:  recorder,
		logger:    logger,
	}
}

// Locks は同一ユーザーの遷移直列化に使うロックテーブルを返す。
// 自動クローズ側（Interceptor）はこのロックの下でクローズとキャッシュ更新を行う。
func (s *Service) Locks() *KeyedMutex {
	return s.locks
}

// Begin は在席イベントを開始する。
//
// mode=Newは常に新しいイベント行を作る。すでに同種別のオープンイベントが
// ある状態で呼ばれると区間が重複するが、拒否はしない。ストア上は両方とも
// 追跡され、キャッシュは後勝ちになる。
//
// mode=Continueは同種別の直近イベントをクローズ済みか否かを問わず再開する。
// 直近イベントが存在しない場合はNewと同じ挙動にフォールバックする。
//
// どちらのモードも先にユーザーを解決（未登録なら作成）してからイベントを
// 操作し、成功した場合のみキャッシュをアクティブに上書きする。
func (s *Service) Begin(ctx context.Context, telegramUID int64, kind model.EventKind, mode model.BeginMode, message string) (*model.PresenceEvent, error) {
	if !kind.Valid() {
		return nil, model.NewInvariantViolationError("unknown event kind: %d", kind)
	}

	unlock := s.locks.Lock(telegramUID)
	defer unlock()

	user, err := s.directory.GetOrCreate(ctx, telegramUID)
	if err != nil {
		return nil, err
	}

	var event *model.PresenceEvent
	switch mode {
	case model.BeginModeContinue:
		event, err = s.continueLatest(ctx, user, kind, message)
	default:
		event, err = s.eventRepo.Create(ctx, user.ID, kind, message)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(telegramUID, true, event.ID)

	if s.recorder != nil {
		s.recorder.RecordBegin(kind, mode)
	}
	s.logger.Info("在席イベントを開始しました",
		slog.Int64("telegram_uid", telegramUID),
		slog.Int64("event_id", event.ID),
		slog.String("kind", kind.String()),
		slog.String("mode", mode.String()),
	)

	return event, nil
}

// continueLatest は同種別の直近イベントを再開する。存在しなければ新規作成する。
// ここでのNotFoundはエラーではなくNewへのフォールバック条件として吸収する。
func (s *Service) continueLatest(ctx context.Context, user *model.User, kind model.EventKind, message string) (*model.PresenceEvent, error) {
	latest, err := s.eventRepo.FindLatestByUserAndKind(ctx, user.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("直近イベントの取得に失敗しました: %w", err)
	}
	if latest == nil {
		return s.eventRepo.Create(ctx, user.ID, kind, message)
	}

	// 種別で絞って取得しているため一致するはずだが、ここが破れていたら
	// データ不整合なので握りつぶさずバグとして報告する。
	if latest.Kind != kind {
		return nil, model.NewInvariantViolationError(
			"continue resolved event %d of kind %s, want %s", latest.ID, latest.Kind, kind)
	}

	return s.eventRepo.Reopen(ctx, latest.ID)
}

// ResumeLatest は種別を問わない直近イベントを再開する（/rafkコマンド用）。
// ユーザーまたはイベントが存在しない場合はmodel.ErrEventNotFoundを返す。
func (s *Service) ResumeLatest(ctx context.Context, telegramUID int64) (*model.PresenceEvent, error) {
	unlock := s.locks.Lock(telegramUID)
	defer unlock()

	user, err := s.directory.GetByTelegramUID(ctx, telegramUID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, err
	}

	latest, err := s.eventRepo.FindLatestByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("直近イベントの取得に失敗しました: %w", err)
	}
	if latest == nil {
		return nil, model.ErrEventNotFound
	}

	event, err := s.eventRepo.Reopen(ctx, latest.ID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(telegramUID, true, event.ID)

	if s.recorder != nil {
		s.recorder.RecordBegin(event.Kind, model.BeginModeContinue)
	}

	return event, nil
}

// End はイベントをストア上でクローズし、両方のタイムスタンプが埋まった行を返す。
//
// キャッシュはここでは更新しない。自動クローズ側（Interceptor）がクローズ成功を
// 確認してから明示的に無効化することで、キャッシュ更新の失敗がクローズの成功を
// 覆い隠さないようにしている。
// 該当イベントが存在しない場合はmodel.ErrEventNotFoundを返す。
func (s *Service) End(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
	event, err := s.eventRepo.Close(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("イベントのクローズに失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordClose(event.Kind)
	}

	return event, nil
}

// Reconcile はストアのオープンイベント一覧からキャッシュを再構築する。
//
// ボットがメッセージを受け付ける前に必ず完了していること。部分的にしか
// ロードされていないキャッシュは、既存のオープンイベントの自動クローズ
// 通知を黙って取りこぼす。介在する変更がなければ何度呼んでも結果は同じ。
func (s *Service) Reconcile(ctx context.Context) error {
	var pairs []cache.OpenPair
	for _, kind := range model.EventKinds {
		refs, err := s.eventRepo.ListOpen(ctx, kind)
		if err != nil {
			return fmt.Errorf("オープンイベント一覧の取得に失敗しました（kind=%s）: %w", kind, err)
		}
		for _, ref := range refs {
			pairs = append(pairs, cache.OpenPair{TelegramUID: ref.TelegramUID, EventID: ref.EventID})
		}
	}

	s.cache.BulkLoad(pairs)

	if s.recorder != nil {
		s.recorder.RecordReconcileLoaded(len(pairs))
	}
	s.logger.Info("在席キャッシュを再構築しました",
		slog.Int("open_events", len(pairs)),
	)

	return nil
}
