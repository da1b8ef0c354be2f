package bot

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// HandlerRecorder はアップデート処理のメトリクス記録インターフェース。
type HandlerRecorder interface {
	RecordUpdateHandled()
	RecordUpdateFailure()
	RecordCommand(name string)
}

// leaveAPI は許可されていないチャットからの退出に使うAPI。*Clientが満たす。
type leaveAPI interface {
	LeaveChat(ctx context.Context, chatID int64) error
}

// UpdateHandler は受信アップデート1件の処理を担う。
//
// 処理順序は固定で、(1)チャット許可の確認、(2)自動クローズの割り込み、
// (3)コマンドのディスパッチ、の順に行う。自動クローズはコマンドより先。
// 「/gn のままもう一度 /gn」のような連投でも、直前のオープンイベントが
// まずクローズされてから新しいイベントが始まる。
type UpdateHandler struct {
	sender        *Sender
	api           leaveAPI
	interceptor   *Interceptor
	registry      *Registry
	limiter       *CommandLimiter
	recorder      HandlerRecorder
	botUsername   string
	isChatAllowed func(chatID int64) bool
	isAdmin       func(telegramUID int64) bool
	logger        *slog.Logger

	locationResponder func(ctx context.Context, location *Location) (string, error)
}

// NewUpdateHandler はUpdateHandlerの新しいインスタンスを生成する。
// recorderはnil可。
func NewUpdateHandler(
	sender *Sender,
	api leaveAPI,
	interceptor *Interceptor,
	registry *Registry,
	limiter *CommandLimiter,
	recorder HandlerRecorder,
	botUsername string,
	isChatAllowed func(chatID int64) bool,
	isAdmin func(telegramUID int64) bool,
	logger *slog.Logger,
) *UpdateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateHandler{
		sender:        sender,
		api:           api,
		interceptor:   interceptor,
		registry:      registry,
		limiter:       limiter,
		recorder:      recorder,
		botUsername:   botUsername,
		isChatAllowed: isChatAllowed,
		isAdmin:       isAdmin,
		logger:        logger,
	}
}

// Handle はアップデート1件を処理する。
// 個々のアップデートの失敗はログとメトリクスに残すだけで、ポーリング
// ループを止めない（エラーを返さない）。
func (h *UpdateHandler) Handle(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}

	logger := h.logger.With(
		slog.String("trace_id", uuid.NewString()),
		slog.Int64("update_id", update.UpdateID),
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int64("telegram_uid", msg.From.ID),
	)

	// プライベートチャットは常に許可。グループは許可リストで判定し、
	// 許可されていないグループからは退出する。
	if msg.Chat.Type != ChatTypePrivate && !h.isChatAllowed(msg.Chat.ID) {
		logger.Warn("許可されていないチャットからのメッセージです")
		if err := h.api.LeaveChat(ctx, msg.Chat.ID); err != nil {
			logger.Error("チャットからの退出に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	// コマンドかどうかに関わらず、メッセージが来た時点でオープンイベントを
	// 自動クローズする。
	if text, closed := h.interceptor.OnMessage(ctx, msg.From); closed {
		if err := h.sender.SendText(ctx, msg.Chat.ID, text, msg.MessageID); err != nil {
			logger.Error("クローズ通知の送信に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	if h.recorder != nil {
		h.recorder.RecordUpdateHandled()
	}

	name, args, ok := h.findCommand(msg)
	if !ok {
		h.handleLocation(ctx, msg, logger)
		return
	}

	cmd, ok := h.registry.Lookup(name)
	if !ok {
		logger.Debug("未知のコマンドです", slog.String("command", name))
		return
	}

	if ao, ok := cmd.(adminOnly); ok && ao.AdminOnly() && !h.isAdmin(msg.From.ID) {
		logger.Warn("管理者専用コマンドが拒否されました", slog.String("command", name))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(msg.From.ID) {
		logger.Warn("コマンドのレート制限を超過しました", slog.String("command", name))
		return
	}

	if provider, ok := cmd.(chatActionProvider); ok {
		h.sender.ChatAction(ctx, msg.Chat.ID, provider.ChatAction())
	}

	reply, err := cmd.Execute(ctx, msg, args)
	if err != nil {
		logger.Error("コマンドの実行に失敗しました",
			slog.String("command", name),
			slog.String("error", err.Error()),
		)
		if h.recorder != nil {
			h.recorder.RecordUpdateFailure()
		}
		reply = "Something went wrong. Please try again later."
	} else if h.recorder != nil {
		h.recorder.RecordCommand(name)
	}

	if reply == "" {
		return
	}
	if err := h.sender.SendText(ctx, msg.Chat.ID, reply, msg.MessageID); err != nil {
		logger.Error("コマンド応答の送信に失敗しました",
			slog.String("command", name),
			slog.String("error", err.Error()),
		)
	}
}

// SetLocationResponder は位置情報メッセージへの応答関数を設定する。
// 未設定の場合、位置情報メッセージは無視される。
func (h *UpdateHandler) SetLocationResponder(fn func(ctx context.Context, location *Location) (string, error)) {
	h.locationResponder = fn
}

// handleLocation は位置情報メッセージにその場所の天気を返信する。
func (h *UpdateHandler) handleLocation(ctx context.Context, msg *Message, logger *slog.Logger) {
	if msg.Location == nil || h.locationResponder == nil {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(msg.From.ID) {
		logger.Warn("位置情報応答のレート制限を超過しました")
		return
	}

	h.sender.ChatAction(ctx, msg.Chat.ID, ChatActionFindLocation)

	reply, err := h.locationResponder(ctx, msg.Location)
	if err != nil {
		logger.Error("位置情報への応答に失敗しました",
			slog.String("error", err.Error()),
		)
		if h.recorder != nil {
			h.recorder.RecordUpdateFailure()
		}
		return
	}

	if err := h.sender.SendText(ctx, msg.Chat.ID, reply, msg.MessageID); err != nil {
		logger.Error("位置情報応答の送信に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// findCommand はメッセージからbot_commandエンティティを探して解析する。
// 先頭のエンティティのみを対象とし、他ボット宛てのコマンドは無視する。
func (h *UpdateHandler) findCommand(msg *Message) (name, args string, ok bool) {
	for _, entity := range msg.Entities {
		if entity.Type != entityTypeBotCommand {
			continue
		}
		return ParseCommand(msg.Text, entity, h.botUsername)
	}
	return "", "", false
}
