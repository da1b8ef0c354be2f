// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/awaybot/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 書き込みは冪等なlast-write-winsで、独自の排他制御は持たない。
type UserRepository interface {
	// FindByTelegramUID はTelegram UIDでユーザーを取得する。見つからない場合はnilを返す。
	FindByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error)

	// Create はデフォルト値（is_paying=false、位置情報なし）でユーザーを作成する。
	Create(ctx context.Context, telegramUID int64) (*model.User, error)

	// UpdateLocation は位置情報を上書きする。
	UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error)

	// UpdatePayingStatus は課金フラグを上書きする。
	UpdatePayingStatus(ctx context.Context, userID int64, isPaying bool) (*model.User, error)
}

// OpenEventRef は起動時のキャッシュ再構築用に、オープンイベントと
// その所有者のTelegram UIDの組を表す。
type OpenEventRef struct {
	TelegramUID int64
	EventID     int64
}

// PresenceEventRepository は在席イベントの永続化インターフェース。
// イベント行は物理削除されず、クローズ後も履歴として残る。
type PresenceEventRepository interface {
	// Create はstarted_at=now、ended_at=NULLの新規イベントを挿入する。
	// 同種別のオープンイベントが既に存在しても常に新しい行を作る（重複回避は呼び出し元の責務）。
	Create(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error)

	// FindLatestByUserAndKind は指定種別の直近イベント（挿入ID降順の先頭）を返す。
	// オープン・クローズ済みを問わない。見つからない場合はnilを返す。
	FindLatestByUserAndKind(ctx context.Context, userID int64, kind model.EventKind) (*model.PresenceEvent, error)

	// FindLatestByUser は種別を問わない直近イベントを返す。見つからない場合はnilを返す。
	FindLatestByUser(ctx context.Context, userID int64) (*model.PresenceEvent, error)

	// Reopen はended_atをクリアしてイベントを再開する。
	// 該当IDが存在しない場合はmodel.ErrEventNotFoundを返す。
	Reopen(ctx context.Context, eventID int64) (*model.PresenceEvent, error)

	// Close はended_at=now()を記録してイベントを閉じ、両方のタイムスタンプが
	// 埋まった行を返す。該当IDが存在しない場合はmodel.ErrEventNotFoundを返す。
	Close(ctx context.Context, eventID int64) (*model.PresenceEvent, error)

	// ListOpen は指定種別のオープンイベントを所有者のTelegram UIDとともに列挙する。
	// 起動時のキャッシュ再構築で1回だけ使う。順序は保証しない。
	ListOpen(ctx context.Context, kind model.EventKind) ([]OpenEventRef, error)
}
