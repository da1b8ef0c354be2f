// Package directory はTelegramの外部IDと内部ユーザーレコードの対応を管理する。
// ユーザーは初回参照時に作成され、このコアが削除することはない。
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/repository"
)

// Service はユーザーディレクトリのサービス層。
// 書き込みは冪等なlast-write-winsで、下層ストア以上の排他制御は行わない。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{userRepo: userRepo, logger: logger}
}

// GetByTelegramUID はTelegram UIDでユーザーを取得する。
// 未登録の場合はmodel.ErrUserNotFoundを返す。
func (s *Service) GetByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	user, err := s.userRepo.FindByTelegramUID(ctx, telegramUID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

// GetOrCreate はTelegram UIDでユーザーを解決し、未登録なら既定値
// （is_paying=false、位置情報なし）で作成する。ストア障害以外では失敗しない。
func (s *Service) GetOrCreate(ctx context.Context, telegramUID int64) (*model.User, error) {
	user, err := s.userRepo.FindByTelegramUID(ctx, telegramUID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.Create(ctx, telegramUID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	s.logger.Info("新規ユーザーを登録しました",
		slog.Int64("telegram_uid", telegramUID),
		slog.Int64("user_id", user.ID),
	)

	return user, nil
}

// SetLocation は位置情報を記録する。ユーザーが未登録なら先に作成する。
func (s *Service) SetLocation(ctx context.Context, telegramUID int64, latitude, longitude float64) (*model.User, error) {
	user, err := s.GetOrCreate(ctx, telegramUID)
	if err != nil {
		return nil, err
	}

	user, err = s.userRepo.UpdateLocation(ctx, user.ID, latitude, longitude)
	if err != nil {
		return nil, fmt.Errorf("位置情報の更新に失敗しました: %w", err)
	}

	return user, nil
}

// SetPayingStatus は課金フラグを記録する。ユーザーが未登録なら先に作成する。
func (s *Service) SetPayingStatus(ctx context.Context, telegramUID int64, isPaying bool) (*model.User, error) {
	user, err := s.GetOrCreate(ctx, telegramUID)
	if err != nil {
		return nil, err
	}

	user, err = s.userRepo.UpdatePayingStatus(ctx, user.ID, isPaying)
	if err != nil {
		return nil, fmt.Errorf("課金フラグの更新に失敗しました: %w", err)
	}

	return user, nil
}
