package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/config"
	"github.com/tazhate/pulsebot/internal/content"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
	"github.com/tazhate/pulsebot/internal/service"
	"github.com/tazhate/pulsebot/pkg/logger"
)

// updateTimeout bounds the handling of one incoming update.
const updateTimeout = time.Minute

// CategoryDetector guesses which category a free-text message asks for.
type CategoryDetector interface {
	DetectCategory(ctx context.Context, message string) (domain.Category, bool)
}

// Scheduler is what the admin routes need from the notification scheduler.
type Scheduler interface {
	Reconcile(ctx context.Context) (scheduler.ReconcileReport, error)
	Status() scheduler.Status
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamReporter exposes the content API circuit breakers to /health.
type UpstreamReporter interface {
	Upstreams() []content.UpstreamStatus
}

type Deps struct {
	Sender        *Sender
	Users         *service.UserService
	Subscriptions *service.SubscriptionService
	Content       *service.ContentService
	Scheduler     Scheduler
	Store         Pinger
	Upstreams     UpstreamReporter
	// Detector is optional; without it free text is matched by keywords only
	Detector CategoryDetector
}

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	sender    *Sender
	users     *service.UserService
	subs      *service.SubscriptionService
	content   *service.ContentService
	sched     Scheduler
	store     Pinger
	upstreams UpstreamReporter
	detector  CategoryDetector

	server    *http.Server
	updateCtx context.Context
	updates   sync.WaitGroup
	polling   atomic.Bool

	log *zap.SugaredLogger
}

// NewAPI connects to the Bot API and checks the token with getMe.
func NewAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	endpoint := cfg.TelegramAPIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

func New(cfg *config.Config, api *tgbotapi.BotAPI, deps Deps) *Bot {
	b := &Bot{
		api:       api,
		cfg:       cfg,
		sender:    deps.Sender,
		users:     deps.Users,
		subs:      deps.Subscriptions,
		content:   deps.Content,
		sched:     deps.Scheduler,
		store:     deps.Store,
		upstreams: deps.Upstreams,
		detector:  deps.Detector,
		updateCtx: context.Background(),
		log:       logger.Named("bot"),
	}
	if b.sender == nil {
		b.sender = NewSender(api, cfg.SendRatePerSecond)
	}
	b.log.Infow("authorized", "username", api.Self.UserName)
	return b
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "news", Description: "📰 Latest news"},
		{Command: "memes", Description: "😂 Trending memes"},
		{Command: "videos", Description: "🎬 Popular videos"},
		{Command: "weather", Description: "☀️ Weather"},
		{Command: "sports", Description: "⚽ Sports updates"},
		{Command: "social", Description: "🔥 Social media trends"},
		{Command: "subscribe", Description: "🔔 Subscribe to updates"},
		{Command: "subscriptions", Description: "📋 Your subscriptions"},
		{Command: "language", Description: "🌐 Language"},
		{Command: "help", Description: "❓ Help"},
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.log.Warnw("failed to set commands", "error", err)
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		b.log.Warnw("webhook reported an error", "message", info.LastErrorMessage)
	}

	b.log.Infow("webhook set", "url", webhookURL)
	return nil
}

// Start serves HTTP and receives updates until ctx is cancelled. Updates
// arrive through the webhook when WEBHOOK_URL is set and by long polling
// otherwise.
func (b *Bot) Start(ctx context.Context) error {
	b.updateCtx = ctx
	b.setCommands()

	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.log.Infow("starting http server", "port", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if b.cfg.WebhookURL != "" {
		if err := b.SetupWebhook(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		}
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.log.Warnw("failed to delete webhook", "error", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.polling.Store(true)
	b.log.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case update := <-updates:
			b.dispatch(update)
		}
	}
}

// Stop shuts the HTTP server down and waits for in-flight updates.
func (b *Bot) Stop(ctx context.Context) error {
	if b.polling.Load() {
		b.api.StopReceivingUpdates()
	}
	var err error
	if b.server != nil {
		err = b.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		b.updates.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	b.updates.Add(1)
	go func() {
		defer b.updates.Done()
		ctx, cancel := context.WithTimeout(b.updateCtx, updateTimeout)
		defer cancel()
		b.handleUpdate(ctx, update)
	}()
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return b.sender.Send(ctx, msg)
}

func (b *Bot) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	return b.sender.Send(ctx, msg)
}

