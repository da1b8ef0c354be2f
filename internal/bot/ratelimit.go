package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CommandLimiterConfig はコマンドのレート制限の設定を保持する。
type CommandLimiterConfig struct {
	Rate            rate.Limit    // ユーザーごとのコマンドレート（cmd/sec）
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultCommandLimiterConfig はデフォルトのコマンドレート制限設定を返す。
// 要件: ユーザーごと 20 cmd/min
func DefaultCommandLimiterConfig() CommandLimiterConfig {
	return CommandLimiterConfig{
		Rate:            rate.Limit(20.0 / 60.0),
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// CommandLimiter はTelegramユーザーごとのコマンドレート制限を管理する。
// 制限を超えたコマンドは黙って捨てる（Botからの応答は返さない）。
type CommandLimiter struct {
	config CommandLimiterConfig

	mu       sync.RWMutex
	limiters map[int64]*userLimiter

	stopCh chan struct{}
}

// NewCommandLimiter は新しいCommandLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewCommandLimiter(config CommandLimiterConfig) *CommandLimiter {
	cl := &CommandLimiter{
		config:   config,
		limiters: make(map[int64]*userLimiter),
		stopCh:   make(chan struct{}),
	}

	go cl.cleanupLoop()

	return cl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (cl *CommandLimiter) Stop() {
	close(cl.stopCh)
}

// Allow は指定ユーザーのコマンド実行を許可するかどうかを返す。
func (cl *CommandLimiter) Allow(telegramUID int64) bool {
	return cl.getOrCreateLimiter(telegramUID).Allow()
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (cl *CommandLimiter) LimiterCount() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.limiters)
}

// getOrCreateLimiter はユーザーのリミッターを取得または作成する。
func (cl *CommandLimiter) getOrCreateLimiter(telegramUID int64) *rate.Limiter {
	cl.mu.RLock()
	ul, exists := cl.limiters[telegramUID]
	cl.mu.RUnlock()

	if exists {
		cl.mu.Lock()
		ul.lastAccess = time.Now()
		cl.mu.Unlock()
		return ul.limiter
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// ダブルチェック
	if ul, exists := cl.limiters[telegramUID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(cl.config.Rate, cl.config.Burst)
	cl.limiters[telegramUID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (cl *CommandLimiter) cleanupLoop() {
	ticker := time.NewTicker(cl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.cleanup()
		case <-cl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (cl *CommandLimiter) cleanup() {
	ttl := cl.config.CleanupInterval * 2

	now := time.Now()

	cl.mu.Lock()
	for uid, ul := range cl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(cl.limiters, uid)
		}
	}
	cl.mu.Unlock()
}
