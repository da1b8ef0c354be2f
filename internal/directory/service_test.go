package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/awaybot/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByTelegramUIDFn  func(ctx context.Context, telegramUID int64) (*model.User, error)
	createFn             func(ctx context.Context, telegramUID int64) (*model.User, error)
	updateLocationFn     func(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error)
	updatePayingStatusFn func(ctx context.Context, userID int64, isPaying bool) (*model.User, error)
}

func (m *mockUserRepo) FindByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	return m.findByTelegramUIDFn(ctx, telegramUID)
}
func (m *mockUserRepo) Create(ctx context.Context, telegramUID int64) (*model.User, error) {
	return m.createFn(ctx, telegramUID)
}
func (m *mockUserRepo) UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error) {
	return m.updateLocationFn(ctx, userID, latitude, longitude)
}
func (m *mockUserRepo) UpdatePayingStatus(ctx context.Context, userID int64, isPaying bool) (*model.User, error) {
	return m.updatePayingStatusFn(ctx, userID, isPaying)
}

// --- テスト ---

// 登録済みユーザーのGetOrCreateが作成を行わないことを検証
func TestService_GetOrCreateExisting(t *testing.T) {
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return &model.User{ID: 1, TelegramUID: telegramUID}, nil
		},
		createFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			t.Error("Create should not be called for an existing user")
			return nil, nil
		},
	}
	svc := NewService(repo, nil)

	user, err := svc.GetOrCreate(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if user.ID != 1 {
		t.Errorf("user.ID = %d, want 1", user.ID)
	}
}

// 未登録ユーザーのGetOrCreateが既定値で作成することを検証
func TestService_GetOrCreateCreates(t *testing.T) {
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return &model.User{ID: 2, TelegramUID: telegramUID}, nil
		},
	}
	svc := NewService(repo, nil)

	user, err := svc.GetOrCreate(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if user.TelegramUID != 7 {
		t.Errorf("user.TelegramUID = %d, want 7", user.TelegramUID)
	}
	if user.IsPaying || user.HasLocation() {
		t.Error("new user should have default attributes")
	}
}

// 未登録ユーザーのGetByTelegramUIDがErrUserNotFoundになることを検証
func TestService_GetByTelegramUIDNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.GetByTelegramUID(context.Background(), 7)
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("GetByTelegramUID() error = %v, want ErrUserNotFound", err)
	}
}

// SetLocationが未登録ユーザーを作成してから位置情報を記録することを検証
func TestService_SetLocationCreatesFirst(t *testing.T) {
	created := false
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			created = true
			return &model.User{ID: 3, TelegramUID: telegramUID}, nil
		},
		updateLocationFn: func(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error) {
			if userID != 3 {
				t.Errorf("userID = %d, want 3", userID)
			}
			return &model.User{ID: userID, Latitude: &latitude, Longitude: &longitude}, nil
		},
	}
	svc := NewService(repo, nil)

	user, err := svc.SetLocation(context.Background(), 7, 35.68, 139.69)
	if err != nil {
		t.Fatalf("SetLocation() error = %v", err)
	}
	if !created {
		t.Error("unknown user should be created before the update")
	}
	if !user.HasLocation() || *user.Latitude != 35.68 {
		t.Errorf("location not recorded: %+v", user)
	}
}

// SetPayingStatusがフラグを上書きすることを検証
func TestService_SetPayingStatus(t *testing.T) {
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return &model.User{ID: 4, TelegramUID: telegramUID}, nil
		},
		updatePayingStatusFn: func(ctx context.Context, userID int64, isPaying bool) (*model.User, error) {
			return &model.User{ID: userID, IsPaying: isPaying}, nil
		},
	}
	svc := NewService(repo, nil)

	user, err := svc.SetPayingStatus(context.Background(), 7, true)
	if err != nil {
		t.Fatalf("SetPayingStatus() error = %v", err)
	}
	if !user.IsPaying {
		t.Error("IsPaying should be true")
	}
}

// ストア障害がそのまま伝播することを検証
func TestService_StoreFailurePropagates(t *testing.T) {
	repo := &mockUserRepo{
		findByTelegramUIDFn: func(ctx context.Context, telegramUID int64) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(repo, nil)

	if _, err := svc.GetOrCreate(context.Background(), 7); err == nil {
		t.Error("GetOrCreate() should fail when the store is unavailable")
	}
}
