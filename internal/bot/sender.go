package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/pkg/logger"
)

// Sender delivers messages to Telegram under one global rate limit. It is
// the scheduler's dispatcher and the bot's only outgoing path.
type Sender struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewSender allows perSecond messages per second; zero or less disables the limit.
func NewSender(api *tgbotapi.BotAPI, perSecond float64) *Sender {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Sender{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.Named("sender"),
	}
}

// Deliver sends text to chatID. Errors wrap domain.ErrRecipientBlocked,
// domain.ErrMalformedMessage or domain.ErrDeliveryFailed.
func (s *Sender) Deliver(ctx context.Context, chatID int64, text string, opts domain.FormatOptions) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.DisableWebPagePreview = opts.DisableWebPagePreview
	return s.Send(ctx, msg)
}

// Send rate-limits and sends any chattable, giving up when ctx ends.
func (s *Sender) Send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.api.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return classify(err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, ctx.Err())
	}
}

// Request is Send for calls whose result is not a message, such as
// callback answers and message edits.
func (s *Sender) Request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	if _, err := s.api.Request(c); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch tgErr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", domain.ErrRecipientBlocked, tgErr.Message)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrMalformedMessage, tgErr.Message)
		}
		return fmt.Errorf("%w: telegram %d: %s", domain.ErrDeliveryFailed, tgErr.Code, tgErr.Message)
	}
	return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
}
