// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Telegram
	TelegramToken  string
	TelegramAPIURL string
	PollTimeout    time.Duration
	PollInterval   time.Duration
	SendRate       float64
	SendBurst      int
	AdminUIDs      map[int64]bool
	AllowedChats   map[int64]bool
	AllowAllChats  bool

	// コマンドごとのユーザー単位レート制限（req/min）
	CommandRatePerMin int
	CommandBurst      int

	// OpenWeather
	WeatherAPIKey   string
	WeatherAPIURL   string
	WeatherUnits    string
	WeatherLanguage string
	WeatherTimeout  time.Duration

	// 通知テンプレート
	WakeUpTemplate       string
	BackFromWorkTemplate string
	GoodNightText        string
	WorkText             string
	NoEventText          string
	LocationSetText      string
	DonateText           string

	// Ops
	OpsPort string
}

// デフォルトの通知テンプレート。{{.Username}}、{{.Message}}、{{.Duration}}が使える。
const (
	defaultWakeUpTemplate       = "{{.Username}} have finished their sleep: {{.Message}}. They've slept for {{.Duration}}"
	defaultBackFromWorkTemplate = "{{.Username}} have finished working: {{.Message}}. They've worked for {{.Duration}}"
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TelegramAPIURL = getEnvString("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.PollTimeout = getEnvDuration("POLL_TIMEOUT", 30*time.Second)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 1*time.Second)
	cfg.SendRate = getEnvFloat("SEND_RATE", 25)
	cfg.SendBurst = getEnvInt("SEND_BURST", 5)
	cfg.CommandRatePerMin = getEnvInt("COMMAND_RATE_PER_MIN", 20)
	cfg.CommandBurst = getEnvInt("COMMAND_BURST", 5)

	cfg.AdminUIDs = parseIDSet(os.Getenv("ADMIN_UIDS"))
	allowed := os.Getenv("ALLOWED_CHAT_IDS")
	cfg.AllowedChats = parseIDSet(allowed)
	cfg.AllowAllChats = allowed == "*"

	cfg.WeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIURL = getEnvString("OPENWEATHER_API_URL", "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherUnits = getEnvString("OPENWEATHER_UNITS", "metric")
	cfg.WeatherLanguage = getEnvString("OPENWEATHER_LANGUAGE", "en")
	cfg.WeatherTimeout = getEnvDuration("OPENWEATHER_TIMEOUT", 10*time.Second)

	cfg.WakeUpTemplate = getEnvString("WAKE_UP_TEMPLATE", defaultWakeUpTemplate)
	cfg.BackFromWorkTemplate = getEnvString("BACK_FROM_WORK_TEMPLATE", defaultBackFromWorkTemplate)
	cfg.GoodNightText = getEnvString("GOOD_NIGHT_TEXT", "Good night!")
	cfg.WorkText = getEnvString("WORK_TEXT", "Have a good one.")
	cfg.NoEventText = getEnvString("NO_EVENT_TEXT", "You haven't been away...")
	cfg.LocationSetText = getEnvString("LOCATION_SET_TEXT", "Location set!")
	cfg.DonateText = getEnvString("DONATE_TEXT", "")

	cfg.OpsPort = getEnvString("OPS_PORT", "8080")

	return cfg, nil
}

// IsAdmin は指定UIDが管理者かどうかを返す。
func (c *Config) IsAdmin(telegramUID int64) bool {
	return c.AdminUIDs[telegramUID]
}

// IsChatAllowed は指定チャットでのコマンド実行が許可されているかを返す。
// プライベートチャットの可否は呼び出し元で別途判定する。
func (c *Config) IsChatAllowed(chatID int64) bool {
	if c.AllowAllChats {
		return true
	}
	return c.AllowedChats[chatID]
}

// parseIDSet はカンマ区切りのID列をセットに変換する。
// 解釈できない要素は無視する。
func parseIDSet(raw string) map[int64]bool {
	set := make(map[int64]bool)
	if raw == "" || raw == "*" {
		return set
	}
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		set[id] = true
	}
	return set
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
