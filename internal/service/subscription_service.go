package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/internal/calendar"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
	"github.com/tazhate/pulsebot/internal/storage"
	"github.com/tazhate/pulsebot/pkg/logger"
)

// Timers is the part of the scheduler that subscription changes drive.
type Timers interface {
	Arm(ctx context.Context, userID int64, category domain.Category, frequency domain.Frequency) error
	Disarm(ctx context.Context, userID int64, category domain.Category, frequency domain.Frequency) error
}

type subKey struct {
	userID   int64
	category domain.Category
}

// keyLocks serializes the store write and the timer change for one
// (user, category) so concurrent subscribe and unsubscribe cannot leave
// a timer that disagrees with the row.
type keyLocks struct {
	mu    sync.Mutex
	locks map[subKey]*sync.Mutex
}

func (k *keyLocks) lock(key subKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[subKey]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

type SubscriptionService struct {
	storage  storage.Store
	timers   Timers
	at       scheduler.DeliveryTime
	timezone *time.Location
	now      func() time.Time
	keys     keyLocks
	log      *zap.SugaredLogger
}

func NewSubscriptionService(s storage.Store, timers Timers, at scheduler.DeliveryTime, tz *time.Location) *SubscriptionService {
	if tz == nil {
		tz = time.UTC
	}
	return &SubscriptionService{
		storage:  s,
		timers:   timers,
		at:       at,
		timezone: tz,
		now:      time.Now,
		log:      logger.Named("subscriptions"),
	}
}

// Subscribe stores the subscription and arms its timer. Subscribing again
// with a different frequency replaces both.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID int64, category domain.Category, frequency domain.Frequency) (*domain.Subscription, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	if !frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}

	unlock := s.keys.lock(subKey{userID: userID, category: category})
	defer unlock()

	sub := &domain.Subscription{
		UserID:    userID,
		Category:  category,
		Frequency: frequency,
	}
	if err := s.storage.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	if err := s.timers.Arm(ctx, userID, category, frequency); err != nil {
		// the row is saved; the next reconcile arms it
		return sub, fmt.Errorf("arm timer: %w", err)
	}

	s.log.Infow("subscribed", "user_id", userID, "category", category, "frequency", frequency)
	return sub, nil
}

// Unsubscribe deletes the subscription and disarms its timer. It returns
// domain.ErrNotFound when the user was not subscribed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID int64, category domain.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	unlock := s.keys.lock(subKey{userID: userID, category: category})
	defer unlock()

	delErr := s.storage.DeleteSubscription(ctx, userID, category)
	if delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
		return fmt.Errorf("delete subscription: %w", delErr)
	}

	// a stray timer without a row is still disarmed
	if err := s.timers.Disarm(ctx, userID, category, ""); err != nil {
		return fmt.Errorf("disarm timer: %w", err)
	}
	if delErr != nil {
		return delErr
	}

	s.log.Infow("unsubscribed", "user_id", userID, "category", category)
	return nil
}

func (s *SubscriptionService) List(ctx context.Context, userID int64) ([]*domain.Subscription, error) {
	return s.storage.ListUserSubscriptions(ctx, userID)
}

func (s *SubscriptionService) SetLanguage(ctx context.Context, userID int64, lang domain.Language) error {
	if _, err := domain.ParseLanguage(string(lang)); err != nil {
		return err
	}
	return s.storage.SetUserLanguage(ctx, userID, lang)
}

// Language returns the user's language, or the default when it cannot be read.
func (s *SubscriptionService) Language(ctx context.Context, userID int64) domain.Language {
	lang, err := s.storage.UserLanguage(ctx, userID)
	if err != nil || lang == "" {
		return domain.DefaultLanguage
	}
	return lang
}

// NextDelivery is when sub will next be delivered.
func (s *SubscriptionService) NextDelivery(sub *domain.Subscription) time.Time {
	return scheduler.NextFireTimeAt(sub.Frequency, s.at, s.timezone, s.now())
}

// Calendar exports the user's subscriptions as iCalendar. It returns
// domain.ErrNotFound when the user has none.
func (s *SubscriptionService) Calendar(ctx context.Context, userID int64) ([]byte, error) {
	subs, err := s.storage.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return calendar.Export(subs, s.at, s.timezone, s.now())
}

// FormatList renders subs one per line with the next delivery time.
func (s *SubscriptionService) FormatList(subs []*domain.Subscription) string {
	var sb strings.Builder
	for _, sub := range subs {
		next := s.NextDelivery(sub)
		nextStr := "—"
		if !next.IsZero() {
			nextStr = next.In(s.timezone).Format("Mon 02.01 15:04")
		}
		sb.WriteString(fmt.Sprintf("%s %s: %s (next: %s)\n", sub.Category.Emoji(), sub.Category, sub.Frequency, nextStr))
	}
	return sb.String()
}
