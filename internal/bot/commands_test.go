package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/awaybot/internal/directory"
	"github.com/hitoshi/awaybot/internal/model"
	"github.com/hitoshi/awaybot/internal/weather"
)

var testTexts = CommandTexts{
	GoodNight:   "Good night!",
	Work:        "Have a good one.",
	NoEvent:     "You haven't been away...",
	LocationSet: "Location set!",
	Donate:      "Send coffee.",
}

func testMessage(uid int64) *Message {
	return &Message{
		MessageID: 1,
		From:      &User{ID: uid, Username: "alice"},
		Chat:      Chat{ID: 100, Type: ChatTypePrivate},
	}
}

// /gnが新規の睡眠イベントを開始することを検証
func TestGoodNightCommand_New(t *testing.T) {
	repo := &stubEventRepo{
		createFn: func(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error) {
			if kind != model.EventKindSleep {
				t.Errorf("kind = %v, want sleep", kind)
			}
			if message != "see you" {
				t.Errorf("message = %q, want %q", message, "see you")
			}
			return &model.PresenceEvent{ID: 1, Kind: kind, StartedAt: time.Now(), Message: message}, nil
		},
	}
	svc, presenceCache := newStubPresence(&stubDirectory{}, repo)
	cmd := NewGoodNightCommand(svc, testTexts)

	reply, err := cmd.Execute(context.Background(), testMessage(7), "see you")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if reply != testTexts.GoodNight {
		t.Errorf("reply = %q, want %q", reply, testTexts.GoodNight)
	}
	if _, active := presenceCache.Get(7); !active {
		t.Error("user should be active after /gn")
	}
}

// 引数rafkで新規作成ではなく直近イベントの再開になることを検証
func TestWorkCommand_ContinueKeyword(t *testing.T) {
	endedAt := time.Now().Add(-time.Hour)
	reopened := false
	repo := &stubEventRepo{
		findLatestByUserAndKindFn: func(ctx context.Context, userID int64, kind model.EventKind) (*model.PresenceEvent, error) {
			return &model.PresenceEvent{ID: 5, Kind: kind, StartedAt: endedAt.Add(-time.Hour), EndedAt: &endedAt}, nil
		},
		reopenFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			reopened = true
			return &model.PresenceEvent{ID: eventID, Kind: model.EventKindWork, StartedAt: endedAt.Add(-time.Hour)}, nil
		},
		createFn: func(ctx context.Context, userID int64, kind model.EventKind, message string) (*model.PresenceEvent, error) {
			t.Error("Create should not be called for the continue keyword")
			return nil, nil
		},
	}
	svc, _ := newStubPresence(&stubDirectory{}, repo)
	cmd := NewWorkCommand(svc, testTexts)

	reply, err := cmd.Execute(context.Background(), testMessage(7), "RAFK")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reopened {
		t.Error("the latest event should be reopened")
	}
	if reply != testTexts.Work {
		t.Errorf("reply = %q, want %q", reply, testTexts.Work)
	}
}

// 履歴がないユーザーの/rafkが定型文を返すことを検証
func TestResumeCommand_NoHistory(t *testing.T) {
	repo := &stubEventRepo{
		findLatestByUserFn: func(ctx context.Context, userID int64) (*model.PresenceEvent, error) {
			return nil, nil
		},
	}
	svc, _ := newStubPresence(&stubDirectory{}, repo)
	cmd := NewResumeCommand(svc, testTexts)

	reply, err := cmd.Execute(context.Background(), testMessage(7), "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if reply != testTexts.NoEvent {
		t.Errorf("reply = %q, want %q", reply, testTexts.NoEvent)
	}
}

// /rafkが再開イベントの種別に応じた定型文を返すことを検証
func TestResumeCommand_RepliesByKind(t *testing.T) {
	endedAt := time.Now().Add(-time.Hour)
	repo := &stubEventRepo{
		findLatestByUserFn: func(ctx context.Context, userID int64) (*model.PresenceEvent, error) {
			return &model.PresenceEvent{ID: 5, Kind: model.EventKindWork, StartedAt: endedAt.Add(-time.Hour), EndedAt: &endedAt}, nil
		},
		reopenFn: func(ctx context.Context, eventID int64) (*model.PresenceEvent, error) {
			return &model.PresenceEvent{ID: eventID, Kind: model.EventKindWork, StartedAt: endedAt.Add(-time.Hour)}, nil
		},
	}
	svc, _ := newStubPresence(&stubDirectory{}, repo)
	cmd := NewResumeCommand(svc, testTexts)

	reply, err := cmd.Execute(context.Background(), testMessage(7), "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if reply != testTexts.Work {
		t.Errorf("reply = %q, want %q", reply, testTexts.Work)
	}
}

// /upが稼働時間を返すことを検証
func TestUptimeCommand(t *testing.T) {
	cmd := NewUptimeCommand(time.Now().Add(-90 * time.Minute))

	reply, err := cmd.Execute(context.Background(), testMessage(7), "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(reply, "Up for 1h 30m") {
		t.Errorf("reply = %q, want uptime text", reply)
	}
}

// resolveLocationの解決順序とバリデーションを検証
func TestResolveLocation(t *testing.T) {
	t.Run("reply to a location message", func(t *testing.T) {
		msg := testMessage(7)
		msg.ReplyToMessage = &Message{Location: &Location{Latitude: 35.68, Longitude: 139.69}}

		loc, err := resolveLocation(msg, "")
		if err != nil {
			t.Fatalf("resolveLocation() error = %v", err)
		}
		if loc.Latitude != 35.68 || loc.Longitude != 139.69 {
			t.Errorf("loc = %+v", loc)
		}
	})

	t.Run("lat lon args", func(t *testing.T) {
		loc, err := resolveLocation(testMessage(7), "51.5 -0.12")
		if err != nil {
			t.Fatalf("resolveLocation() error = %v", err)
		}
		if loc.Latitude != 51.5 || loc.Longitude != -0.12 {
			t.Errorf("loc = %+v", loc)
		}
	})

	t.Run("out of range latitude", func(t *testing.T) {
		if _, err := resolveLocation(testMessage(7), "91 0"); err == nil {
			t.Error("latitude over 90 should be rejected")
		}
	})

	t.Run("missing args", func(t *testing.T) {
		if _, err := resolveLocation(testMessage(7), ""); err == nil {
			t.Error("empty args without a reply should be rejected")
		}
	})
}

// /set_paying_statusの引数解釈を検証
func TestSetPayingStatusCommand(t *testing.T) {
	repo := &mockUserRepoForBot{}
	dir := directory.NewService(repo, nil)
	cmd := NewSetPayingStatusCommand(dir)

	if ao, ok := cmd.(interface{ AdminOnly() bool }); !ok || !ao.AdminOnly() {
		t.Fatal("set_paying_status should be admin only")
	}

	t.Run("uid and flag args", func(t *testing.T) {
		reply, err := cmd.Execute(context.Background(), testMessage(7), "42 true")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(reply, "42") || !strings.Contains(reply, "true") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("reply target", func(t *testing.T) {
		msg := testMessage(7)
		msg.ReplyToMessage = &Message{From: &User{ID: 99}}

		reply, err := cmd.Execute(context.Background(), msg, "false")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(reply, "99") || !strings.Contains(reply, "false") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("bad flag", func(t *testing.T) {
		reply, err := cmd.Execute(context.Background(), testMessage(7), "42 yes-please")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(reply, "true") {
			t.Errorf("reply = %q, want usage hint", reply)
		}
	})
}

// /weatherの検索対象の解決を検証
func TestWeatherCommand(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"name":"Tokyo","weather":[{"description":"light rain"}],"main":{"temp":18.4,"feels_like":17.9,"humidity":82},"wind":{"speed":3.2}}`)
	}))
	defer server.Close()

	client := weather.NewClient(weather.Config{
		APIKey: "k",
		APIURL: server.URL,
		Units:  "metric",
	}, server.Client())

	lat, lon := 35.68, 139.69
	dir := directory.NewService(&locatedUserRepo{lat: &lat, lon: &lon}, nil)
	cmd := NewWeatherCommand(client, dir, "metric")

	t.Run("city args", func(t *testing.T) {
		reply, err := cmd.Execute(context.Background(), testMessage(7), "Tokyo")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if gotQuery.Get("q") != "Tokyo" {
			t.Errorf("q = %q, want Tokyo", gotQuery.Get("q"))
		}
		if !strings.Contains(reply, "light rain") {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("saved location", func(t *testing.T) {
		if _, err := cmd.Execute(context.Background(), testMessage(7), ""); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if gotQuery.Get("lat") != "35.68" || gotQuery.Get("lon") != "139.69" {
			t.Errorf("lat/lon = %q/%q", gotQuery.Get("lat"), gotQuery.Get("lon"))
		}
	})

	t.Run("no saved location hints at setup", func(t *testing.T) {
		bare := directory.NewService(&mockUserRepoForBot{}, nil)
		cmd := NewWeatherCommand(client, bare, "metric")

		reply, err := cmd.Execute(context.Background(), testMessage(7), "")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(reply, "/set_my_location") {
			t.Errorf("reply = %q, want setup hint", reply)
		}
	})
}

// locatedUserRepo は位置情報登録済みユーザーを返すUserRepository実装。
type locatedUserRepo struct {
	mockUserRepoForBot
	lat, lon *float64
}

func (r *locatedUserRepo) FindByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	return &model.User{ID: telegramUID, TelegramUID: telegramUID, Latitude: r.lat, Longitude: r.lon}, nil
}

// /shuffleが単語数を保ったまま並べ替えることを検証
func TestShuffleCommand(t *testing.T) {
	cmd := NewShuffleCommand()

	reply, err := cmd.Execute(context.Background(), testMessage(7), "a b c d e")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	words := strings.Fields(reply)
	if len(words) != 5 {
		t.Errorf("len(words) = %d, want 5", len(words))
	}

	reply, err = cmd.Execute(context.Background(), testMessage(7), "alone")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "two words") {
		t.Errorf("reply = %q, want usage hint", reply)
	}
}

// mockUserRepoForBot は/set_paying_statusテスト用の最小UserRepository実装。
type mockUserRepoForBot struct{}

func (m *mockUserRepoForBot) FindByTelegramUID(ctx context.Context, telegramUID int64) (*model.User, error) {
	return &model.User{ID: telegramUID, TelegramUID: telegramUID}, nil
}
func (m *mockUserRepoForBot) Create(ctx context.Context, telegramUID int64) (*model.User, error) {
	return &model.User{ID: telegramUID, TelegramUID: telegramUID}, nil
}
func (m *mockUserRepoForBot) UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) (*model.User, error) {
	return &model.User{ID: userID, TelegramUID: userID, Latitude: &latitude, Longitude: &longitude}, nil
}
func (m *mockUserRepoForBot) UpdatePayingStatus(ctx context.Context, userID int64, isPaying bool) (*model.User, error) {
	return &model.User{ID: userID, TelegramUID: userID, IsPaying: isPaying}, nil
}
