// Package cache は「どのユーザーがどのオープンイベントで離席中か」を保持する
// インメモリインデックスを提供する。
//
// ストアから再構築可能な弱いビューであり、真実は常にストア側にある。
// キャッシュとストアが食い違った場合はキャッシュを上書きして直す（逆は禁止）。
package cache

import "sync"

// entry はユーザー1人分のキャッシュ値。
// アクティブフラグと、その裏付けになるオープンイベントのIDを持つ。
type entry struct {
	active  bool
	eventID int64
}

// PresenceCache はTelegram UIDをキーとする並行安全なインメモリマップ。
//
// キーにイベント種別を含めない。このため就寝と就業を同時にオープンにした
// ユーザーはどちらか一方しか追跡されない。
// エントリは永続化されず、プロセス起動のたびにストアから再構築される。
type PresenceCache struct {
	mu      sync.RWMutex
	entries map[int64]entry
}

// NewPresenceCache は空のPresenceCacheを生成する。
func NewPresenceCache() *PresenceCache {
	return &PresenceCache{
		entries: make(map[int64]entry),
	}
}

// Set は指定ユーザーのエントリを無条件に上書きする。
// 複数のワーカーから同一キーへ並行に読み書きされても安全。
func (c *PresenceCache) Set(telegramUID int64, active bool, eventID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[telegramUID] = entry{active: active, eventID: eventID}
}

// OpenPair はBulkLoadに渡す(ユーザー, オープンイベント)の組。
type OpenPair struct {
	TelegramUID int64
	EventID     int64
}

// BulkLoad は列挙された全ユーザーをアクティブとして登録する。
// 起動時にストアのオープンイベント一覧からキャッシュを再構築するために使う。
// 同一ユーザーが複数回現れた場合は後勝ちで上書きされる。
func (c *PresenceCache) BulkLoad(pairs []OpenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pairs {
		c.entries[p.TelegramUID] = entry{active: true, eventID: p.EventID}
	}
}

// Get はユーザーがアクティブな場合のみ、裏付けイベントのIDを返す。
// エントリがないユーザーは「アクティブでない」と同義で、これは既定値としても正しい。
// クリティカルセクション内でI/Oは行わない。
func (c *PresenceCache) Get(telegramUID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[telegramUID]
	if !ok || !e.active {
		return 0, false
	}
	return e.eventID, true
}

// Snapshot はアクティブなエントリのコピーを返す。テストと診断用。
func (c *PresenceCache) Snapshot() map[int64]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[int64]int64)
	for telegramUID, e := range c.entries {
		if e.active {
			snapshot[telegramUID] = e.eventID
		}
	}
	return snapshot
}
