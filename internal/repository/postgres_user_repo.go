package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/awaybot/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByTelegramUID はTelegram UIDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_uid, is_paying, latitude, longitude
		   FROM users WHERE telegram_uid = $1`,
		telegramUID,
	).Scan(&user.ID, &user.TelegramUID, &user.IsPaying, &user.Latitude, &user.Longitude)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by telegram uid: %w", err)
	}

	return user, nil
}

// Create はデフォルト値でユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, telegramUID int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (telegram_uid, is_paying)
		 VALUES ($1, FALSE)
		 RETURNING id, telegram_uid, is_paying, latitude, longitude`,
		telegramUID,
	).Scan(&user.ID, &user.TelegramUID, &user.IsPaying, &user.Latitude, &user.Longitude)

	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// UpdateLocation は位置情報を上書きする。
func (r *PostgresUserRepo) UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET latitude = $2, longitude = $3
		  WHERE id = $1
		 RETURNING id, telegram_uid, is_paying, latitude, longitude`,
		userID, latitude, longitude,
	).Scan(&user.ID, &user.TelegramUID, &user.IsPaying, &user.Latitude, &user.Longitude)

	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user location: %w", err)
	}

	return user, nil
}

// UpdatePayingStatus は課金フラグを上書きする。
func (r *PostgresUserRepo) UpdatePayingStatus(ctx context.Context, userID int64, isPaying bool) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET is_paying = $2
		  WHERE id = $1
		 RETURNING id, telegram_uid, is_paying, latitude, longitude`,
		userID, isPaying,
	).Scan(&user.ID, &user.TelegramUID, &user.IsPaying, &user.Latitude, &user.Longitude)

	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update paying status: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
