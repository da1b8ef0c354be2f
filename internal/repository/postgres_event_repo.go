package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/awaybot/internal/model"
)

// PostgresPresenceEventRepo はPostgreSQLを使用した在席イベントリポジトリ。
type PostgresPresenceEventRepo struct {
	db *sql.DB
}

// NewPostgresPresenceEventRepo はPostgresPresenceEventRepoを生成する。
func NewPostgresPresenceEventRepo(db *sql.DB) *PostgresPresenceEventRepo {
	return &PostgresPresenceEventRepo{db: db}
}

// eventColumns はRETURNING句とSELECT句で共通のカラム並び。
const eventColumns = `id, user_id, kind, started_at, ended_at, message`

// scanEvent は1行をmodel.PresenceEventへ読み込む。
func scanEvent(row *sql.Row) (*model.PresenceEvent, error) {
	event := &model.PresenceEvent{}
	var endedAt sql.NullTime
	var message sql.NullString

	err := row.Scan(&event.ID, &event.UserID, &event.Kind, &event.StartedAt, &endedAt, &message)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		event.EndedAt = &t
	}
	if message.Valid {
		event.Message = message.String
	}

	return event, nil
}

// Create は新規イベントを挿入する。ended_atはNULL（オープン状態）で作成される。
func (r *PostgresPresenceEventRepo) Create(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error) {
	var msg sql.NullString
	if message != "" {
		msg = sql.NullString{String: message, Valid: true}
	}

	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`INSERT INTO presence_events (user_id, kind, started_at, ended_at, message)
		 VALUES ($1, $2, now(), NULL, $3)
		 RETURNING `+eventColumns,
		userID, kind, msg,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert presence event: %w", err)
	}

	return event, nil
}

// FindLatestByUserAndKind は指定種別の直近イベントを返す。見つからない場合はnilを返す。
func (r *PostgresPresenceEventRepo) FindLatestByUserAndKind(ctx context.Context, userID int64, kind model.EventKind) (*model.PresenceEvent, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+`
		   FROM presence_events
		  WHERE user_id = $1 AND kind = $2
		  ORDER BY id DESC
		  LIMIT 1`,
		userID, kind,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest presence event: %w", err)
	}

	return event, nil
}

// FindLatestByUser は種別を問わない直近イベントを返す。見つからない場合はnilを返す。
func (r *PostgresPresenceEventRepo) FindLatestByUser(ctx context.Context, userID int64) (*model.PresenceEvent, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+`
		   FROM presence_events
		  WHERE user_id = $1
		  ORDER BY id DESC
		  LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest presence event: %w", err)
	}

	return event, nil
}

// Reopen はended_atをクリアしてイベントを再開する。
func (r *PostgresPresenceEventRepo) Reopen(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`UPDATE presence_events SET ended_at = NULL
		  WHERE id = $1
		 RETURNING `+eventColumns,
		eventID,
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reopen presence event: %w", err)
	}

	return event, nil
}

// Close はended_at=now()を記録してイベントを閉じる。
func (r *PostgresPresenceEventRepo) Close(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`UPDATE presence_events SET ended_at = now()
		  WHERE id = $1
		 RETURNING `+eventColumns,
		eventID,
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close presence event: %w", err)
	}

	return event, nil
}

// ListOpen は指定種別のオープンイベントを所有者のTelegram UIDとともに列挙する。
func (r *PostgresPresenceEventRepo) ListOpen(ctx context.Context, kind model.EventKind) ([]OpenEventRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.telegram_uid, e.id
		   FROM presence_events e
		   JOIN users u ON u.id = e.user_id
		  WHERE e.ended_at IS NULL AND e.kind = $1`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list open presence events: %w", err)
	}
	defer rows.Close()

	var refs []OpenEventRef
	for rows.Next() {
		var ref OpenEventRef
		if err := rows.Scan(&ref.TelegramUID, &ref.EventID); err != nil {
			return nil, fmt.Errorf("failed to scan open presence event: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open presence events: %w", err)
	}

	return refs, nil
}

// compile-time interface check
var _ PresenceEventRepository = (*PostgresPresenceEventRepo)(nil)
