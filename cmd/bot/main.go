package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/config"
	"github.com/tazhate/pulsebot/internal/ai"
	"github.com/tazhate/pulsebot/internal/bot"
	"github.com/tazhate/pulsebot/internal/clients/newsapi"
	"github.com/tazhate/pulsebot/internal/clients/openweather"
	"github.com/tazhate/pulsebot/internal/clients/rss"
	"github.com/tazhate/pulsebot/internal/clients/twitter"
	"github.com/tazhate/pulsebot/internal/clients/youtube"
	"github.com/tazhate/pulsebot/internal/content"
	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/scheduler"
	"github.com/tazhate/pulsebot/internal/service"
	"github.com/tazhate/pulsebot/internal/storage"
	"github.com/tazhate/pulsebot/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pulsebot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Debug:     cfg.LogDebug,
		Location:  cfg.Timezone,
		LogToFile: cfg.LogToFile,
		LogsDir:   cfg.LogsDir,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Named("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	cache, closeCache := newCache(cfg, log)
	defer closeCache()

	provider := content.NewProvider(content.Options{
		News:        newsapi.NewClient(cfg.NewsAPIKey),
		Feed:        rss.NewClient(cfg.NewsFeedURL),
		YouTube:     youtube.NewClient(cfg.YouTubeAPIKey),
		Weather:     openweather.NewClient(cfg.WeatherAPIKey),
		Twitter:     twitter.NewClient(cfg.TwitterBearerToken),
		Cache:       cache,
		CacheTTL:    cfg.ContentCacheTTL,
		DefaultCity: cfg.DefaultCity,
	})

	var (
		translator ai.Translator = ai.NoopTranslator{}
		detector   bot.CategoryDetector
	)
	if cfg.OpenAIKey != "" {
		oa := ai.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)
		translator = oa
		detector = oa
	} else {
		log.Info("OPENAI_API_KEY not set, translation and intent detection disabled")
	}
	composer := digest.NewComposer(translator)

	api, err := bot.NewAPI(cfg)
	if err != nil {
		return fmt.Errorf("init telegram api: %w", err)
	}
	sender := bot.NewSender(api, cfg.SendRatePerSecond)

	at, err := scheduler.ParseDeliveryTime(cfg.DeliveryTime)
	if err != nil {
		return fmt.Errorf("delivery time: %w", err)
	}
	sched, err := scheduler.New(store, provider, composer, sender, scheduler.Options{
		Location:     cfg.Timezone,
		DeliveryTime: at,
		FireTimeout:  cfg.FireTimeout,
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	tgBot := bot.New(cfg, api, bot.Deps{
		Sender:        sender,
		Users:         service.NewUserService(store),
		Subscriptions: service.NewSubscriptionService(store, sched, at, cfg.Timezone),
		Content:       service.NewContentService(store, provider, composer),
		Scheduler:     sched,
		Store:         store,
		Upstreams:     provider,
		Detector:      detector,
	})

	if _, err := sched.Reconcile(ctx); err != nil {
		log.Errorw("initial reconcile failed", "error", err)
	}
	sched.Start()

	botErr := make(chan error, 1)
	go func() {
		botErr <- tgBot.Start(ctx)
	}()

	log.Infow("pulsebot started", "delivery_time", at.String(), "timezone", cfg.Timezone.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infow("shutting down", "signal", sig.String())
	case err := <-botErr:
		if err != nil {
			log.Errorw("bot stopped", "error", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Warnw("error stopping bot", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Warnw("error stopping scheduler", "error", err)
	}

	log.Info("pulsebot stopped")
	return nil
}

// newCache prefers Redis when REDIS_ADDR is set and falls back to the
// in-process cache when Redis is unreachable.
func newCache(cfg *config.Config, log *zap.SugaredLogger) (content.Cache, func()) {
	if cfg.RedisAddr == "" {
		return content.NewMemoryCache(), func() {}
	}
	rc, err := content.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warnw("redis unavailable, using memory cache", "addr", cfg.RedisAddr, "error", err)
		return content.NewMemoryCache(), func() {}
	}
	return rc, func() { rc.Close() }
}
