package bot

import (
	"context"

	"github.com/hitoshi/awaybot/internal/cache"
	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/presence"
	"github.com/hitoshi/awaybot/internal/repository"
)

// --- presence.Service用のモック ---

type stubDirectory struct {
	getOrCreateFn      func(ctx context.Context, telegramUID int64) (*model.User, error)
	getByTelegramUIDFn func(ctx context.Context, telegramUID int64) (*model.User, error)
}

func (s *stubDirectory) GetOrCreate(ctx context.Context, telegramUID int64) (*model.User, error) {
	if s.getOrCreateFn != nil {
		return s.getOrCreateFn(ctx, telegramUID)
	}
	return &model.User{ID: telegramUID * 10, TelegramUID: telegramUID}, nil
}

func (s *stubDirectory) GetByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	if s.getByTelegramUIDFn != nil {
		return s.getByTelegramUIDFn(ctx, telegramUID)
	}
	return &model.User{ID: telegramUID * 10, TelegramUID: telegramUID}, nil
}

type stubEventRepo struct {
	createFn                  func(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error)
	findLatestByUserAndKindFn func(ctx context.Context, userID int64, kind model.EventKind) (*model.PresenceEvent, error)
	findLatestByUserFn        func(ctx context.Context, userID int64) (*model.PresenceEvent, error)
	reopenFn                  func(ctx context.Context, eventID int64) (*model.PresenceEvent, error)
	closeFn                   func(ctx context.Context, eventID int64) (*model.PresenceEvent, error)
}

func (s *stubEventRepo) Create(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error) {
	return s.createFn(ctx, userID, kind, message)
}
func (s *stubEventRepo) FindLatestByUserAndKind(ctx context.Context, userID int64, kind model.EventKind) (*model.PresenceEvent, error) {
	return s.findLatestByUserAndKindFn(ctx, userID, kind)
}
func (s *stubEventRepo) FindLatestByUser(ctx context.Context, userID int64) (*model.PresenceEvent, error) {
	return s.findLatestByUserFn(ctx, userID)
}
func (s *stubEventRepo) Reopen(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
	return s.reopenFn(ctx, eventID)
}
func (s *stubEventRepo) Close(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
	return s.closeFn(ctx, eventID)
}
func (s *stubEventRepo) ListOpen(ctx context.Context, kind model.EventKind) ([]repository.OpenEventRef, error) {
	return nil, nil
}

// newStubPresence はモックを束ねたpresence.Serviceとキャッシュを返す。
func newStubPresence(dir *stubDirectory, repo *stubEventRepo) (*presence.Service, *cache.PresenceCache) {
	presenceCache := cache.NewPresenceCache()
	svc := presence.NewService(dir, repo, presenceCache, presence.NewKeyedMutex(), nil, nil)
	return svc, presenceCache
}

// --- 送信系APIのフェイク ---

type fakeAPI struct {
	sent      []SendMessageParams
	actions   []ChatAction
	leftChats []int64
	sendErr   error
	leaveErr  error
}

func (f *fakeAPI) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	return &Message{MessageID: int64(len(f.sent)), Chat: Chat{ID: params.ChatID}}, nil
}

func (f *fakeAPI) SendChatAction(ctx context.Context, chatID int64, action ChatAction) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeAPI) LeaveChat(ctx context.Context, chatID int64) error {
	if f.leaveErr != nil {
		return f.leaveErr
	}
	f.leftChats = append(f.leftChats, chatID)
	return nil
}
