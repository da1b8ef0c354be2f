package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/awaybot/internal/directory"
	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/presence"
	"github.com/hitoshi/awaybot/internal/weather"
)

// CommandTexts はコマンドの定型返信テキスト。
type CommandTexts struct {
	GoodNight   string
	Work        string
	NoEvent     string
	LocationSet string
	Donate      string
}

// continueKeyword はbegin系コマンドで「新規作成ではなく直近イベントの再開」を
// 指示する引数。
const continueKeyword = "rafk"

// beginCommand は在席イベントを開始するコマンド（/gn と /work の共通実装）。
// 引数が再開キーワードならContinue、それ以外は引数を離席メッセージとして
// Newで開始する。
type beginCommand struct {
	name        string
	description string
	kind        model.EventKind
	reply       string
	svc         *presence.Service
}

// NewGoodNightCommand は睡眠イベントを開始する /gn コマンドを生成する。
func NewGoodNightCommand(svc *presence.Service, texts CommandTexts) Command {
	return &beginCommand{
		name:        "gn",
		description: "Go to sleep. Pass a message, or \"rafk\" to resume the last sleep.",
		kind:        model.EventKindSleep,
		reply:       texts.GoodNight,
		svc:         svc,
	}
}

// NewWorkCommand は仕事イベントを開始する /work コマンドを生成する。
func NewWorkCommand(svc *presence.Service, texts CommandTexts) Command {
	return &beginCommand{
		name:        "work",
		description: "Start working. Pass a message, or \"rafk\" to resume the last work session.",
		kind:        model.EventKindWork,
		reply:       texts.Work,
		svc:         svc,
	}
}

func (c *beginCommand) Name() string        { return c.name }
func (c *beginCommand) Description() string { return c.description }

func (c *beginCommand) Execute(ctx context.Context, msg *Message, args string) (string, error) {
	mode := model.BeginModeNew
	message := args
	if strings.EqualFold(args, continueKeyword) {
		mode = model.BeginModeContinue
		message = ""
	}

	if _, err := c.svc.Begin(ctx, msg.From.ID, c.kind, mode, message); err != nil {
		return "", err
	}

	return c.reply, nil
}

// resumeCommand は種別を問わず直近の在席イベントを再開する /rafk コマンド。
type resumeCommand struct {
	svc   *presence.Service
	texts CommandTexts
}

// NewResumeCommand は /rafk コマンドを生成する。
func NewResumeCommand(svc *presence.Service, texts CommandTexts) Command {
	return &resumeCommand{svc: svc, texts: texts}
}

func (c *resumeCommand) Name() string { return "rafk" }
func (c *resumeCommand) Description() string {
	return "Resume your last away event, whatever its kind."
}

func (c *resumeCommand) Execute(ctx context.Context, msg *Message, _ string) (string, error) {
	event, err := c.svc.ResumeLatest(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return c.texts.NoEvent, nil
		}
		return "", err
	}

	switch event.Kind {
	case model.EventKindWork:
		return c.texts.Work, nil
	default:
		return c.texts.GoodNight, nil
	}
}

// uptimeCommand はボットの稼働時間を返す /up コマンド。
type uptimeCommand struct {
	startedAt time.Time
}

// NewUptimeCommand は /up コマンドを生成する。
func NewUptimeCommand(startedAt time.Time) Command {
	return &uptimeCommand{startedAt: startedAt}
}

func (c *uptimeCommand) Name() string        { return "up" }
func (c *uptimeCommand) Description() string { return "Show how long the bot has been running." }

func (c *uptimeCommand) Execute(_ context.Context, _ *Message, _ string) (string, error) {
	return "Up for " + FormatDuration(time.Since(c.startedAt)), nil
}

// weatherCommand は現在天気を返す /weather コマンド。
// 引数があれば都市名で、なければ登録済みの位置情報で検索する。
type weatherCommand struct {
	client    *weather.Client
	directory *directory.Service
	units     string
}

// NewWeatherCommand は /weather コマンドを生成する。
func NewWeatherCommand(client *weather.Client, dir *directory.Service, units string) Command {
	return &weatherCommand{client: client, directory: dir, units: units}
}

func (c *weatherCommand) Name() string { return "weather" }
func (c *weatherCommand) Description() string {
	return "Current weather for a city, or for your saved location."
}
func (c *weatherCommand) ChatAction() ChatAction { return ChatActionFindLocation }

func (c *weatherCommand) Execute(ctx context.Context, msg *Message, args string) (string, error) {
	var (
		report *weather.Report
		err    error
	)
	if args != "" {
		report, err = c.client.ByCity(ctx, args)
	} else {
		// 引数なし: 自分の登録済み位置情報か、返信先ユーザーの位置情報を使う
		targetUID := msg.From.ID
		if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
			targetUID = msg.ReplyToMessage.From.ID
		}

		var user *model.User
		user, err = c.directory.GetByTelegramUID(ctx, targetUID)
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				return "Pass a city name, or set your location with /set_my_location first.", nil
			}
			return "", err
		}
		if !user.HasLocation() {
			return "Pass a city name, or set your location with /set_my_location first.", nil
		}
		report, err = c.client.ByCoords(ctx, *user.Latitude, *user.Longitude)
	}
	if err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			return "I couldn't find that place.", nil
		}
		return "", err
	}

	return weather.FormatReport(report, c.units), nil
}

// NewLocationResponder は位置情報メッセージに対してその座標の現在天気を
// 返す応答関数を生成する。UpdateHandler.SetLocationResponderに渡す。
func NewLocationResponder(client *weather.Client, units string) func(ctx context.Context, location *Location) (string, error) {
	return func(ctx context.Context, location *Location) (string, error) {
		report, err := client.ByCoords(ctx, location.Latitude, location.Longitude)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return "I couldn't find that place.", nil
			}
			return "", err
		}
		return weather.FormatReport(report, units), nil
	}
}

// setLocationCommand は天気検索用の位置情報を登録する /set_my_location コマンド。
// 位置情報メッセージへの返信として使うか、引数に「緯度 経度」を渡す。
type setLocationCommand struct {
	directory *directory.Service
	texts     CommandTexts
}

// NewSetLocationCommand は /set_my_location コマンドを生成する。
func NewSetLocationCommand(dir *directory.Service, texts CommandTexts) Command {
	return &setLocationCommand{directory: dir, texts: texts}
}

func (c *setLocationCommand) Name() string { return "set_my_location" }
func (c *setLocationCommand) Description() string {
	return "Save your location for /weather. Reply to a location message, or pass \"lat lon\"."
}

func (c *setLocationCommand) Execute(ctx context.Context, msg *Message, args string) (string, error) {
	location, err := resolveLocation(msg, args)
	if err != nil {
		return err.Error(), nil
	}

	if _, err := c.directory.SetLocation(ctx, msg.From.ID, location.Latitude, location.Longitude); err != nil {
		return "", err
	}

	return c.texts.LocationSet, nil
}

// resolveLocation は返信先の位置情報メッセージまたは「緯度 経度」引数から
// 位置を決定する。エラーはユーザー向けのヒントとしてそのまま返信に使う。
func resolveLocation(msg *Message, args string) (*Location, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.Location != nil {
		return msg.ReplyToMessage.Location, nil
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		return nil, errors.New("Reply to a location message, or pass \"lat lon\".")
	}

	latitude, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || latitude < -90 || latitude > 90 {
		return nil, errors.New("Latitude must be a number between -90 and 90.")
	}
	longitude, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || longitude < -180 || longitude > 180 {
		return nil, errors.New("Longitude must be a number between -180 and 180.")
	}

	return &Location{Latitude: latitude, Longitude: longitude}, nil
}

// setPayingStatusCommand はユーザーの支援者フラグを設定する管理者用コマンド。
// 対象ユーザーのメッセージへの返信として「true/false」を渡すか、
// 引数に「<UID> <true/false>」を渡す。
type setPayingStatusCommand struct {
	directory *directory.Service
}

// NewSetPayingStatusCommand は /set_paying_status コマンドを生成する。
func NewSetPayingStatusCommand(dir *directory.Service) Command {
	return &setPayingStatusCommand{directory: dir}
}

func (c *setPayingStatusCommand) Name() string { return "set_paying_status" }
func (c *setPayingStatusCommand) Description() string {
	return "Admin: mark a user as paying. Reply with \"true/false\", or pass \"<uid> <true/false>\"."
}
func (c *setPayingStatusCommand) AdminOnly() bool { return true }

func (c *setPayingStatusCommand) Execute(ctx context.Context, msg *Message, args string) (string, error) {
	fields := strings.Fields(args)

	var (
		targetUID int64
		flag      string
	)
	switch {
	case msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && len(fields) == 1:
		targetUID = msg.ReplyToMessage.From.ID
		flag = fields[0]
	case len(fields) == 2:
		uid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return "The first argument must be a Telegram user ID.", nil
		}
		targetUID = uid
		flag = fields[1]
	default:
		return "Reply with \"true/false\", or pass \"<uid> <true/false>\".", nil
	}

	isPaying, err := strconv.ParseBool(flag)
	if err != nil {
		return "The status must be \"true\" or \"false\".", nil
	}

	user, err := c.directory.SetPayingStatus(ctx, targetUID, isPaying)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Paying status for %d is now %t.", user.TelegramUID, user.IsPaying), nil
}

// donateCommand は支援案内のテキストを返す /donate コマンド。
type donateCommand struct {
	text string
}

// NewDonateCommand は /donate コマンドを生成する。
func NewDonateCommand(texts CommandTexts) Command {
	return &donateCommand{text: texts.Donate}
}

func (c *donateCommand) Name() string        { return "donate" }
func (c *donateCommand) Description() string { return "How to support the bot." }

func (c *donateCommand) Execute(_ context.Context, _ *Message, _ string) (string, error) {
	if c.text == "" {
		return "Thanks for the thought, but this bot runs on good will alone.", nil
	}
	return c.text, nil
}

// shuffleCommand は引数の単語をシャッフルして返す /shuffle コマンド。
type shuffleCommand struct{}

// NewShuffleCommand は /shuffle コマンドを生成する。
func NewShuffleCommand() Command {
	return &shuffleCommand{}
}

func (c *shuffleCommand) Name() string        { return "shuffle" }
func (c *shuffleCommand) Description() string { return "Shuffle the words you pass." }

func (c *shuffleCommand) Execute(_ context.Context, _ *Message, args string) (string, error) {
	words := strings.Fields(args)
	if len(words) < 2 {
		return "Give me at least two words to shuffle.", nil
	}

	rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})

	return strings.Join(words, " "), nil
}
