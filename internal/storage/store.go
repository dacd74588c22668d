package storage

import (
	"context"
	"strings"
	"time"

	"github.com/tazhate/pulsebot/internal/domain"
)

// Store is the durable state of the bot: users, their language preference,
// subscriptions and the interaction log. Lookups that find nothing return
// domain.ErrNotFound.
type Store interface {
	SaveUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, telegramID int64) (*domain.User, error)

	SetUserLanguage(ctx context.Context, userID int64, lang domain.Language) error
	// UserLanguage returns domain.DefaultLanguage when no preference is stored.
	UserLanguage(ctx context.Context, userID int64) (domain.Language, error)

	// SaveSubscription inserts or replaces the subscription for
	// (UserID, Category). LastDeliveredAt survives a frequency change.
	SaveSubscription(ctx context.Context, sub *domain.Subscription) error
	DeleteSubscription(ctx context.Context, userID int64, category domain.Category) error
	GetSubscription(ctx context.Context, userID int64, category domain.Category) (*domain.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID int64) ([]*domain.Subscription, error)
	ListSubscribers(ctx context.Context, category domain.Category, frequency domain.Frequency) ([]domain.Subscriber, error)
	RecordDelivered(ctx context.Context, userID int64, category domain.Category, at time.Time) error

	LogInteraction(ctx context.Context, in *domain.Interaction) error
	CountInteractions(ctx context.Context, userID int64) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs go to
// Postgres, anything else is treated as a SQLite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsPostgresDSN(dsn) {
		pg, err := NewPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := New(dsn)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
