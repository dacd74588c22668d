package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/pulsebot/config"
	"github.com/tazhate/pulsebot/internal/ai"
	"github.com/tazhate/pulsebot/internal/content"
	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
	"github.com/tazhate/pulsebot/internal/service"
	"github.com/tazhate/pulsebot/internal/storage"
)

type tgRequest struct {
	method string
	form   url.Values
}

// fakeTelegram answers Bot API calls and records them.
type fakeTelegram struct {
	mu       sync.Mutex
	requests []tgRequest
	// failures by chat_id: Bot API error code to return
	failures map[string]int
	srv      *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{failures: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	r.ParseForm()

	f.mu.Lock()
	f.requests = append(f.requests, tgRequest{method: method, form: r.PostForm})
	code := f.failures[r.PostForm.Get("chat_id")]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code != 0 && method == "sendMessage" {
		fmt.Fprintf(w, `{"ok":false,"error_code":%d,"description":%q}`, code, http.StatusText(code))
		return
	}
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Pulse","username":"pulsebot"}}`)
	case "sendMessage", "editMessageText":
		chatID, _ := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%d,"type":"private"},"text":"ok"}}`, chatID)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeTelegram) calls(method string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []url.Values
	for _, r := range f.requests {
		if r.method == method {
			out = append(out, r.form)
		}
	}
	return out
}

// lastText is the text of the most recent sendMessage.
func (f *fakeTelegram) lastText(t *testing.T) string {
	t.Helper()
	sent := f.calls("sendMessage")
	require.NotEmpty(t, sent, "nothing was sent")
	return sent[len(sent)-1].Get("text")
}

func (f *fakeTelegram) api(t *testing.T) *tgbotapi.BotAPI {
	t.Helper()
	api, err := tgbotapi.NewBotAPIWithClient("TEST", f.srv.URL+"/bot%s/%s", f.srv.Client())
	require.NoError(t, err)
	return api
}

type timerCall struct {
	op        string
	userID    int64
	category  domain.Category
	frequency domain.Frequency
}

type fakeTimers struct {
	mu    sync.Mutex
	calls []timerCall
}

func (f *fakeTimers) Arm(_ context.Context, userID int64, c domain.Category, fr domain.Frequency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, timerCall{"arm", userID, c, fr})
	return nil
}

func (f *fakeTimers) Disarm(_ context.Context, userID int64, c domain.Category, fr domain.Frequency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, timerCall{"disarm", userID, c, fr})
	return nil
}

type fakeScheduler struct {
	report scheduler.ReconcileReport
	err    error
	status scheduler.Status
	runs   int
}

func (f *fakeScheduler) Reconcile(context.Context) (scheduler.ReconcileReport, error) {
	f.runs++
	return f.report, f.err
}

func (f *fakeScheduler) Status() scheduler.Status {
	return f.status
}

type stubProvider struct{}

func (stubProvider) Fetch(_ context.Context, c domain.Category, filter string) domain.Content {
	if c == domain.CategoryWeather {
		city := filter
		if city == "" {
			city = "Addis Ababa"
		}
		return domain.Content{Category: c, Weather: &domain.Weather{
			City: city, Temperature: 22, Condition: "Partly cloudy", Humidity: 65, WindSpeed: 8,
		}}
	}
	return domain.Content{Category: c, Items: []domain.Item{
		{Title: "Headline " + string(c), Description: "Body", URL: "https://example.com/1"},
	}}
}

type stubDetector struct {
	category domain.Category
}

func (d stubDetector) DetectCategory(context.Context, string) (domain.Category, bool) {
	return d.category, d.category != ""
}

type fakeUpstreams struct {
	status []content.UpstreamStatus
}

func (f *fakeUpstreams) Upstreams() []content.UpstreamStatus {
	return f.status
}

type harness struct {
	bot       *Bot
	tg        *fakeTelegram
	store     *storage.Storage
	timers    *fakeTimers
	sched     *fakeScheduler
	upstreams *fakeUpstreams
}

func newHarness(t *testing.T, cfg *config.Config, detector CategoryDetector) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	loc, err := time.LoadLocation("Africa/Addis_Ababa")
	require.NoError(t, err)
	cfg.Timezone = loc

	store, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		tg:        newFakeTelegram(t),
		store:     store,
		timers:    &fakeTimers{},
		sched:     &fakeScheduler{},
		upstreams: &fakeUpstreams{},
	}
	api := h.tg.api(t)
	h.bot = New(cfg, api, Deps{
		Sender:        NewSender(api, 0),
		Users:         service.NewUserService(store),
		Subscriptions: service.NewSubscriptionService(store, h.timers, scheduler.DefaultDeliveryTime, loc),
		Content:       service.NewContentService(store, stubProvider{}, digest.NewComposer(ai.NoopTranslator{})),
		Scheduler:     h.sched,
		Store:         store,
		Upstreams:     h.upstreams,
		Detector:      detector,
	})
	return h
}

func message(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Sara", UserName: "sara"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func (h *harness) send(userID int64, text string) {
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: message(userID, text)})
}

func (h *harness) press(userID int64, data string) {
	h.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID, FirstName: "Sara"},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: userID, Type: "private"}},
		Data:    data,
	}})
}
