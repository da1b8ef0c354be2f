// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/awaybot/internal/bot"
	"github.com/hitoshi/awaybot/internal/cache"
	"github.com/hitoshi/awaybot/internal/config"
	"github.com/hitoshi/awaybot/internal/database"
	"github.com/hitoshi/awaybot/internal/directory"
	"github.com/hitoshi/awaybot/internal/logger"
	"github.com/hitoshi/awaybot/internal/metrics"
	"github.com/hitoshi/awaybot/internal/presence"
	"github.com/hitoshi/awaybot/internal/repository"
	"github.com/hitoshi/awaybot/internal/weather"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("OPS_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runBot(cfg)
	}
}

// runBot はボットモードで起動する。
// DB接続とマイグレーションの後に全依存関係をワイヤリングし、在席キャッシュを
// ストアから再構築してからポーリングを開始する。キャッシュの再構築が
// ポーリング開始より先であることは自動クローズの取りこぼし防止に必須。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runBot(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. マイグレーションの適用
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリとドメインサービスの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	eventRepo := repository.NewPostgresPresenceEventRepo(db)

	dirService := directory.NewService(userRepo, slog.Default())
	presenceCache := cache.NewPresenceCache()
	locks := presence.NewKeyedMutex()
	presenceService := presence.NewService(
		dirService, eventRepo, presenceCache, locks, collector, slog.Default(),
	)

	// 5. Telegramクライアントの初期化
	client := bot.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.PollTimeout, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startupCancel()

	me, err := client.GetMe(startupCtx)
	if err != nil {
		return fmt.Errorf("failed to identify bot: %w", err)
	}
	slog.Info("bot identified",
		slog.Int64("bot_id", me.ID),
		slog.String("username", me.Username),
	)

	// 6. 通知フォーマッタとコマンドの構築
	formatter, err := bot.NewFormatter(cfg.WakeUpTemplate, cfg.BackFromWorkTemplate)
	if err != nil {
		return fmt.Errorf("failed to build notification formatter: %w", err)
	}

	texts := bot.CommandTexts{
		GoodNight:   cfg.GoodNightText,
		Work:        cfg.WorkText,
		NoEvent:     cfg.NoEventText,
		LocationSet: cfg.LocationSetText,
		Donate:      cfg.DonateText,
	}

	cmdRegistry := bot.NewRegistry()
	cmdRegistry.Register(bot.NewGoodNightCommand(presenceService, texts))
	cmdRegistry.Register(bot.NewWorkCommand(presenceService, texts))
	cmdRegistry.Register(bot.NewResumeCommand(presenceService, texts))
	cmdRegistry.Register(bot.NewUptimeCommand(time.Now()))
	cmdRegistry.Register(bot.NewSetPayingStatusCommand(dirService))
	cmdRegistry.Register(bot.NewDonateCommand(texts))
	cmdRegistry.Register(bot.NewShuffleCommand())

	// 天気コマンドはAPIキーが設定されている場合のみ有効にする
	var weatherClient *weather.Client
	if cfg.WeatherAPIKey != "" {
		weatherClient = weather.NewClient(weather.Config{
			APIKey:   cfg.WeatherAPIKey,
			APIURL:   cfg.WeatherAPIURL,
			Units:    cfg.WeatherUnits,
			Language: cfg.WeatherLanguage,
			Timeout:  cfg.WeatherTimeout,
		}, nil)
		cmdRegistry.Register(bot.NewWeatherCommand(weatherClient, dirService, cfg.WeatherUnits))
		cmdRegistry.Register(bot.NewSetLocationCommand(dirService, texts))
	} else {
		slog.Warn("OPENWEATHER_API_KEY is not set, weather commands are disabled")
	}

	if err := client.SetMyCommands(startupCtx, cmdRegistry.BotCommands()); err != nil {
		slog.Error("failed to register bot commands",
			slog.String("error", err.Error()),
		)
	}

	// 7. キャッシュの再構築（ポーリング開始より前に必ず完了させる）
	if err := presenceService.Reconcile(startupCtx); err != nil {
		return fmt.Errorf("failed to reconcile presence cache: %w", err)
	}

	// 8. ハンドラーとポーラーの構築
	sender := bot.NewSender(client, cfg.SendRate, cfg.SendBurst, collector, slog.Default())
	interceptor := bot.NewInterceptor(presenceService, presenceCache, formatter, collector, slog.Default())

	limiterCfg := bot.DefaultCommandLimiterConfig()
	limiterCfg.Rate = rate.Limit(float64(cfg.CommandRatePerMin) / 60.0)
	limiterCfg.Burst = cfg.CommandBurst
	limiter := bot.NewCommandLimiter(limiterCfg)
	defer limiter.Stop()

	handler := bot.NewUpdateHandler(
		sender, client, interceptor, cmdRegistry, limiter, collector,
		me.Username, cfg.IsChatAllowed, cfg.IsAdmin, slog.Default(),
	)
	if weatherClient != nil {
		// 位置情報メッセージにはその場所の天気を返す
		handler.SetLocationResponder(bot.NewLocationResponder(weatherClient, cfg.WeatherUnits))
	}

	poller := bot.NewPoller(client, handler, cfg.PollTimeout, cfg.PollInterval, collector, slog.Default())

	// 9. OpsサーバーをバックグラウンドでListen（/healthz, /metrics）
	opsServer := &http.Server{
		Addr:         ":" + cfg.OpsPort,
		Handler:      metrics.NewOpsRouter(registry, db, slog.Default()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", opsServer.Addr),
		)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down bot...")
		cancel()
	}()

	// ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown failed: %w", err)
	}

	slog.Info("bot stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
