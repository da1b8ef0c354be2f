package bot

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// sendAPI はSenderが使う送信系APIのインターフェース。*Clientが満たす。
type sendAPI interface {
	SendMessage(ctx context.Context, params SendMessageParams) (*Message, error)
	SendChatAction(ctx context.Context, chatID int64, action ChatAction) error
}

// SendRecorder は送信失敗のメトリクス記録インターフェース。
type SendRecorder interface {
	RecordSendFailure()
}

// Sender はレート制限付きの送信ラッパー。
// Telegram Bot APIの全体レート制限（おおよそ30 msg/sec）を超えないよう
// トークンバケットで送信を抑制する。
type Sender struct {
	api      sendAPI
	limiter  *rate.Limiter
	recorder SendRecorder
	logger   *slog.Logger
}

// NewSender はSenderの新しいインスタンスを生成する。
// ratePerSecが0以下の場合は制限なしで送信する。recorderはnil可。
func NewSender(api sendAPI, ratePerSec float64, burst int, recorder SendRecorder, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Sender{
		api:      api,
		limiter:  rate.NewLimiter(limit, burst),
		recorder: recorder,
		logger:   logger,
	}
}

// SendText はテキストメッセージを送信する。replyToが0以外なら返信として送る。
// レート制限の待機中にコンテキストがキャンセルされた場合はエラーを返す。
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, replyTo int64) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := s.api.SendMessage(ctx, SendMessageParams{
		ChatID:           chatID,
		Text:             text,
		ReplyToMessageID: replyTo,
	})
	if err != nil {
		if s.recorder != nil {
			s.recorder.RecordSendFailure()
		}
		return err
	}

	return nil
}

// ChatAction はチャットアクションをベストエフォートで送信する。
// 失敗してもコマンド処理は続行するため、エラーはログに残すだけにする。
func (s *Sender) ChatAction(ctx context.Context, chatID int64, action ChatAction) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if err := s.api.SendChatAction(ctx, chatID, action); err != nil {
		s.logger.Debug("チャットアクションの送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}
