package bot

import (
	"context"
	"sort"
	"strings"
)

// Command はボットコマンドの実装インターフェース。
// Executeは返信テキストを返す。空文字列は「返信なし」を意味する。
type Command interface {
	// Name はスラッシュを除いたコマンド名を返す。
	Name() string
	// Description はsetMyCommandsに登録する説明文を返す。
	Description() string
	// Execute はコマンドを実行する。argsはコマンド名より後ろの本文。
	Execute(ctx context.Context, msg *Message, args string) (string, error)
}

// chatActionProvider を実装するコマンドは、実行前に送るチャットアクションを
// 指定できる（天気取得の「位置情報を探しています」など）。
type chatActionProvider interface {
	ChatAction() ChatAction
}

// adminOnly を実装してtrueを返すコマンドは管理者UIDからのみ実行できる。
type adminOnly interface {
	AdminOnly() bool
}

// Registry はコマンド名からコマンドへの対応を保持する。
type Registry struct {
	commands map[string]Command
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register はコマンドを登録する。同名の登録は後勝ち。
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

// Lookup はコマンド名でコマンドを検索する。
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// BotCommands はsetMyCommands用のコマンド一覧を名前順で返す。
func (r *Registry) BotCommands() []BotCommand {
	list := make([]BotCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		list = append(list, BotCommand{
			Command:     cmd.Name(),
			Description: cmd.Description(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Command < list[j].Command })
	return list
}

// ParseCommand はbot_commandエンティティからコマンド名と引数を取り出す。
// 「/gn@awaybot おやすみ」のような@付き指定では、botUsernameと一致しない
// 宛先を無視する（グループ内の他ボット宛てコマンド）。
func ParseCommand(text string, entity MessageEntity, botUsername string) (name, args string, ok bool) {
	if entity.Offset != 0 || entity.Length <= 1 {
		return "", "", false
	}

	runes := []rune(text)
	if entity.Length > len(runes) {
		return "", "", false
	}

	token := string(runes[1:entity.Length])
	args = strings.TrimSpace(string(runes[entity.Length:]))

	if at := strings.IndexByte(token, '@'); at >= 0 {
		if !strings.EqualFold(token[at+1:], botUsername) {
			return "", "", false
		}
		token = token[:at]
	}

	return strings.ToLower(token), args, true
}
