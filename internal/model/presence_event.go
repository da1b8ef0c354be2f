package model

import "time"

// EventKind は在席イベントの種別を表す閉じた列挙型。
// DBには整数の識別子として保存されるが、コード上は型で区別する。
type EventKind int

const (
	// EventKindSleep は就寝イベントを示す。
	EventKindSleep EventKind = 1
	// EventKindWork は就業イベントを示す。
	EventKindWork EventKind = 2
)

// EventKinds はシステムが追跡する全イベント種別。
// 起動時のキャッシュ再構築はこのスライスを走査する。
var EventKinds = []EventKind{EventKindSleep, EventKindWork}

// Valid は既知の種別かどうかを返す。
func (k EventKind) Valid() bool {
	switch k {
	case EventKindSleep, EventKindWork:
		return true
	}
	return false
}

// String はログ・メトリクス用のラベルを返す。
func (k EventKind) String() string {
	switch k {
	case EventKindSleep:
		return "sleep"
	case EventKindWork:
		return "work"
	}
	return "unknown"
}

// BeginMode は開始遷移のバリアントを表す。
type BeginMode int

const (
	// BeginModeNew は常に新しいイベント行を作成する。
	BeginModeNew BeginMode = iota
	// BeginModeContinue は直近のイベントを再開する。存在しない場合はNewと同じ挙動。
	BeginModeContinue
)

// String はログ・メトリクス用のラベルを返す。
func (m BeginMode) String() string {
	if m == BeginModeContinue {
		return "continue"
	}
	return "new"
}

// PresenceEvent はユーザーが宣言した離席区間を表す。
// EndedAtがnilの間はオープン状態。クローズ後も履歴として残り、物理削除されない。
// 不変条件: 同一(ユーザー, 種別)に対してオープンなイベントは高々1つ。
type PresenceEvent struct {
	ID        int64
	UserID    int64
	Kind      EventKind
	StartedAt time.Time
	EndedAt   *time.Time
	Message   string
}

// IsOpen は終了時刻が未記録かどうかを返す。
func (e *PresenceEvent) IsOpen() bool {
	return e.EndedAt == nil
}

// Duration は開始からの経過時間を返す。
// クローズ済みなら区間の長さ、オープン状態なら現在までの経過を返す。
func (e *PresenceEvent) Duration() time.Duration {
	if e.EndedAt == nil {
		return time.Since(e.StartedAt)
	}
	return e.EndedAt.Sub(e.StartedAt)
}
