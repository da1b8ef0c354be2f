package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/awaybot/internal/model"
)

// キャッシュが非アクティブなユーザーのメッセージでは何も起きないことを検証
func TestInterceptor_InactiveUserNoop(t *testing.T) {
	repo := &stubEventRepo{
		closeFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			t.Error("Close should not be called for an inactive user")
			return nil, nil
		},
	}
	svc, presenceCache := newStubPresence(&stubDirectory{}, repo)
	interceptor := NewInterceptor(svc, presenceCache, testFormatter(t), nil, nil)

	text, closed := interceptor.OnMessage(context.Background(), &User{ID: 7})
	if closed || text != "" {
		t.Errorf("OnMessage() = (%q, %v), want no close", text, closed)
	}
}

// アクティブユーザーのメッセージでイベントがクローズされ通知が返ることを検証
func TestInterceptor_ClosesOpenEvent(t *testing.T) {
	startedAt := time.Now().Add(-8 * time.Hour)
	repo := &stubEventRepo{
		closeFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			if eventID != 42 {
				t.Errorf("Close eventID = %d, want 42", eventID)
			}
			endedAt := startedAt.Add(8 * time.Hour)
			return &model.PresenceEvent{
				ID: eventID, Kind: model.EventKindSleep,
				StartedAt: startedAt, EndedAt: &endedAt, Message: "gn",
			}, nil
		},
	}
	svc, presenceCache := newStubPresence(&stubDirectory{}, repo)
	presenceCache.Set(7, true, 42)
	interceptor := NewInterceptor(svc, presenceCache, testFormatter(t), nil, nil)

	text, closed := interceptor.OnMessage(context.Background(), &User{ID: 7, Username: "alice"})
	if !closed {
		t.Fatal("OnMessage() should report a close")
	}
	if !strings.Contains(text, "alice slept: gn") || !strings.Contains(text, "8h") {
		t.Errorf("text = %q, want rendered close notification", text)
	}

	if _, active := presenceCache.Get(7); active {
		t.Error("user should be inactive after the auto close")
	}
}

// キャッシュが存在しないイベントを指していた場合にキャッシュ側が直されることを検証
func TestInterceptor_StaleCacheEntry(t *testing.T) {
	repo := &stubEventRepo{
		closeFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			return nil, model.ErrEventNotFound
		},
	}
	svc, presenceCache := newStubPresence(&stubDirectory{}, repo)
	presenceCache.Set(7, true, 42)
	interceptor := NewInterceptor(svc, presenceCache, testFormatter(t), nil, nil)

	text, closed := interceptor.OnMessage(context.Background(), &User{ID: 7})
	if closed || text != "" {
		t.Errorf("OnMessage() = (%q, %v), want silent repair", text, closed)
	}

	// ストアが真実: 裏付けのないエントリは非アクティブに上書きされる
	if _, active := presenceCache.Get(7); active {
		t.Error("stale cache entry should be overwritten to inactive")
	}
}

// ストア障害時にキャッシュを維持し、次のメッセージで再試行できることを検証
func TestInterceptor_StoreFailureKeepsCache(t *testing.T) {
	repo := &stubEventRepo{
		closeFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc, presenceCache := newStubPresence(&stubDirectory{}, repo)
	presenceCache.Set(7, true, 42)
	interceptor := NewInterceptor(svc, presenceCache, testFormatter(t), nil, nil)

	if _, closed := interceptor.OnMessage(context.Background(), &User{ID: 7}); closed {
		t.Error("OnMessage() should not report a close on store failure")
	}

	if eventID, active := presenceCache.Get(7); !active || eventID != 42 {
		t.Errorf("cache = (%d, %v), want unchanged (42, true)", eventID, active)
	}
}

// fromがnilのメッセージ（チャンネル投稿等）を無視することを検証
func TestInterceptor_NilFrom(t *testing.T) {
	svc, presenceCache := newStubPresence(&stubDirectory{}, &stubEventRepo{})
	interceptor := NewInterceptor(svc, presenceCache, testFormatter(t), nil, nil)

	if _, closed := interceptor.OnMessage(context.Background(), nil); closed {
		t.Error("OnMessage(nil) should be a no-op")
	}
}
