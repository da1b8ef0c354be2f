package bot

// Telegram Bot APIのうち、このボットが使うオブジェクトのみを定義する。

// Update は受信アップデート1件を表す。
// allowed_updatesを"message"に絞っているため、Message以外のペイロードは持たない。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message は受信・送信メッセージを表す。
type Message struct {
	MessageID      int64           `json:"message_id"`
	From           *User           `json:"from,omitempty"`
	Chat           Chat            `json:"chat"`
	Text           string          `json:"text,omitempty"`
	Entities       []MessageEntity `json:"entities,omitempty"`
	Location       *Location       `json:"location,omitempty"`
	ReplyToMessage *Message        `json:"reply_to_message,omitempty"`
}

// User はTelegramユーザーを表す。
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName は通知に使う表示名を返す。
// ユーザー名があればそれを、なければ姓名を連結したものを使う。
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// Chat はチャットを表す。
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// ChatTypePrivate はプライベートチャットのtype値。
const ChatTypePrivate = "private"

// MessageEntity はメッセージテキスト内の特殊領域（コマンド等）を表す。
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// entityTypeBotCommand はコマンドを示すエンティティのtype値。
const entityTypeBotCommand = "bot_command"

// Location は位置情報メッセージのペイロードを表す。
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BotCommand はsetMyCommandsに登録するコマンド定義を表す。
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SendMessageParams はsendMessageのリクエストパラメータ。
type SendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// ChatAction はsendChatActionで送るアクション種別。
type ChatAction string

const (
	// ChatActionTyping は「入力中...」表示。
	ChatActionTyping ChatAction = "typing"
	// ChatActionFindLocation は「位置情報を取得中...」表示。
	ChatActionFindLocation ChatAction = "find_location"
)
