// Package bot はTelegram Bot APIのクライアント、コマンドディスパッチ、
// 受信メッセージのインターセプション（自動クローズ）を提供する。
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// APIError はTelegram Bot APIが返したエラーレスポンスを表す。
type APIError struct {
	Method      string
	Code        int
	Description string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api %s failed: %d %s", e.Method, e.Code, e.Description)
}

// apiResponse はBot APIの共通レスポンスエンベロープ。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Client はTelegram Bot APIのHTTPクライアント。
// ロングポーリング（getUpdates）と送信系メソッドを提供する。
type Client struct {
	httpClient *http.Client
	baseURL    string // テスト用にエンドポイントを差し替え可能
	token      string
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// pollTimeoutはgetUpdatesのサーバー側待機時間で、HTTPクライアントの
// タイムアウトはそれより長く取る必要がある。
func NewClient(baseURL, token string, pollTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: pollTimeout + 10*time.Second},
		baseURL:    baseURL,
		token:      token,
		logger:     logger,
	}
}

// call はBot APIメソッドを1回呼び出し、resultがnilでなければレスポンスを
// デコードして書き込む。
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return fmt.Errorf("failed to encode %s params: %w", method, err)
		}
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !envelope.OK {
		return &APIError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}

	return nil
}

// GetMe はボット自身のアカウント情報を取得する。
// 起動時に@サフィックス判定用のユーザー名を得るために呼ぶ。
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	me := &User{}
	if err := c.call(ctx, "getMe", nil, me); err != nil {
		return nil, err
	}
	return me, nil
}

// getUpdatesParams はgetUpdatesのリクエストパラメータ。
type getUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	TimeoutSeconds int64    `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates は受信アップデートをロングポーリングで取得する。
// offsetには「最後に処理したupdate_id + 1」を渡す。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := getUpdatesParams{
		Offset:         offset,
		TimeoutSeconds: int64(timeout.Seconds()),
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage はテキストメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	sent := &Message{}
	if err := c.call(ctx, "sendMessage", params, sent); err != nil {
		return nil, err
	}
	return sent, nil
}

// setMyCommandsParams はsetMyCommandsのリクエストパラメータ。
type setMyCommandsParams struct {
	Commands []BotCommand `json:"commands"`
}

// SetMyCommands はコマンド一覧をTelegram側に登録する。
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", setMyCommandsParams{Commands: commands}, nil)
}

// sendChatActionParams はsendChatActionのリクエストパラメータ。
type sendChatActionParams struct {
	ChatID int64      `json:"chat_id"`
	Action ChatAction `json:"action"`
}

// SendChatAction はチャットアクション（入力中...等）を送信する。
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action ChatAction) error {
	return c.call(ctx, "sendChatAction", sendChatActionParams{ChatID: chatID, Action: action}, nil)
}

// leaveChatParams はleaveChatのリクエストパラメータ。
type leaveChatParams struct {
	ChatID int64 `json:"chat_id"`
}

// LeaveChat は指定チャットから退出する。許可されていないグループチャットで使う。
func (c *Client) LeaveChat(ctx context.Context, chatID int64) error {
	return c.call(ctx, "leaveChat", leaveChatParams{ChatID: chatID}, nil)
}
