package presence

import "sync"

// shardCount はロックテーブルのシャード数。2の冪であること。
const shardCount = 64

// KeyedMutex はTelegram UIDをキーとするシャード化ロックテーブル。
//
// 同一ユーザーの在席遷移（begin / 自動クローズ）を直列化するために使う。
// グローバルロック1本だと無関係なユーザー同士まで直列化されるため、
// UIDの下位ビットでシャードに振り分ける。異なるUIDが同じシャードに
// 衝突することはあるが、正しさには影響しない（過剰な直列化のみ）。
type KeyedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewKeyedMutex はKeyedMutexを生成する。
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock は指定キーのシャードをロックし、解除用の関数を返す。
//
//	unlock := km.Lock(uid)
//	defer unlock()
func (m *KeyedMutex) Lock(telegramUID int64) func() {
	shard := &m.shards[uint64(telegramUID)&(shardCount-1)]
	shard.Lock()
	return shard.Unlock
}
