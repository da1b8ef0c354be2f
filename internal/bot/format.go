package bot

import (
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/awaybot/internal/model"
)

// closeTemplateData はクローズ通知テンプレートへ渡すデータ。
type closeTemplateData struct {
	Username string
	Message  string
	Duration string
}

// Formatter は在席イベントのクローズ通知テキストを組み立てる。
// テンプレートは種別ごとに環境変数で差し替え可能で、ユーザー入力の
// 自由文はHTMLマークアップを除去してから埋め込む。
type Formatter struct {
	templates map[model.EventKind]*template.Template
	sanitizer *bluemonday.Policy
}

// NewFormatter は各イベント種別のテンプレートを解析してFormatterを生成する。
// テンプレートの構文エラーは起動時に検出する。
func NewFormatter(wakeUpTemplate, backFromWorkTemplate string) (*Formatter, error) {
	wakeUp, err := template.New("wake_up").Parse(wakeUpTemplate)
	if err != nil {
		return nil, fmt.Errorf("起床通知テンプレートの解析に失敗しました: %w", err)
	}

	backFromWork, err := template.New("back_from_work").Parse(backFromWorkTemplate)
	if err != nil {
		return nil, fmt.Errorf("仕事終了通知テンプレートの解析に失敗しました: %w", err)
	}

	return &Formatter{
		templates: map[model.EventKind]*template.Template{
			model.EventKindSleep: wakeUp,
			model.EventKindWork:  backFromWork,
		},
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// CloseNotification はイベントがクローズされたときの通知テキストを返す。
func (f *Formatter) CloseNotification(username string, event *model.PresenceEvent) (string, error) {
	tmpl, ok := f.templates[event.Kind]
	if !ok {
		return "", model.NewInvariantViolationError("通知テンプレートが未定義のイベント種別です: %d", event.Kind)
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, closeTemplateData{
		Username: f.SanitizeText(username),
		Message:  f.SanitizeText(event.Message),
		Duration: FormatDuration(event.Duration()),
	})
	if err != nil {
		return "", fmt.Errorf("通知テンプレートの実行に失敗しました: %w", err)
	}

	return sb.String(), nil
}

// SanitizeText はユーザー入力の自由文からHTMLタグを除去する。
// bluemondayはエンティティをエスケープするため、除去後に元の文字へ戻す。
func (f *Formatter) SanitizeText(s string) string {
	return html.UnescapeString(f.sanitizer.Sanitize(s))
}

// FormatDuration は経過時間を人間向けの文字列にする。
// 秒未満は切り捨て、ゼロ以下は "0s" とする。
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}

	d = d.Truncate(time.Second)

	var parts []string
	if days := int(d / (24 * time.Hour)); days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
		d -= time.Duration(days) * 24 * time.Hour
	}
	if hours := int(d / time.Hour); hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
		d -= time.Duration(hours) * time.Hour
	}
	if minutes := int(d / time.Minute); minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
		d -= time.Duration(minutes) * time.Minute
	}
	if seconds := int(d / time.Second); seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	return strings.Join(parts, " ")
}
