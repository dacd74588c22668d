package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tazhate/pulsebot/internal/domain"
)

// PostgresStorage is the Store backed by a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStorage)(nil)

func NewPostgres(ctx context.Context, dsn string) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &PostgresStorage{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStorage) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id BIGINT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT 'en',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			frequency TEXT NOT NULL,
			last_delivered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_bucket ON subscriptions(category, frequency)`,
		`CREATE TABLE IF NOT EXISTS user_interactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			command TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_interactions_user_id ON user_interactions(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Users ===

func (s *PostgresStorage) SaveUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (telegram_id, username, first_name, last_name, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name`,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.CreatedAt,
	)
	return err
}

func (s *PostgresStorage) GetUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT telegram_id, username, first_name, last_name, created_at FROM users WHERE telegram_id = $1`,
		telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

// === Preferences ===

func (s *PostgresStorage) SetUserLanguage(ctx context.Context, userID int64, lang domain.Language) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, language, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET language = EXCLUDED.language, updated_at = now()`,
		userID, string(lang),
	)
	return err
}

func (s *PostgresStorage) UserLanguage(ctx context.Context, userID int64) (domain.Language, error) {
	var lang string
	err := s.pool.QueryRow(ctx,
		`SELECT language FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&lang)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultLanguage, nil
	}
	if err != nil {
		return "", err
	}
	return domain.Language(lang), nil
}

// === Subscriptions ===

func (s *PostgresStorage) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (user_id, category, frequency, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, category) DO UPDATE SET
			frequency = EXCLUDED.frequency,
			updated_at = EXCLUDED.updated_at`,
		sub.UserID, string(sub.Category), string(sub.Frequency), sub.CreatedAt, sub.UpdatedAt,
	)
	return err
}

func (s *PostgresStorage) DeleteSubscription(ctx context.Context, userID int64, category domain.Category) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE user_id = $1 AND category = $2`, userID, string(category),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPgSubscription(row pgx.Row) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	var category, frequency string
	if err := row.Scan(&sub.UserID, &category, &frequency, &sub.LastDeliveredAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Category = domain.Category(category)
	sub.Frequency = domain.Frequency(frequency)
	return sub, nil
}

func (s *PostgresStorage) GetSubscription(ctx context.Context, userID int64, category domain.Category) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND category = $2`,
		userID, string(category),
	)
	sub, err := scanPgSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sub, err
}

func (s *PostgresStorage) ListUserSubscriptions(ctx context.Context, userID int64) ([]*domain.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY category`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPgSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStorage) ListSubscribers(ctx context.Context, category domain.Category, frequency domain.Frequency) ([]domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.user_id, COALESCE(p.language, 'en')
		 FROM subscriptions s
		 LEFT JOIN user_preferences p ON p.user_id = s.user_id
		 WHERE s.category = $1 AND s.frequency = $2
		 ORDER BY s.user_id`,
		string(category), string(frequency),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		var lang string
		if err := rows.Scan(&sub.UserID, &lang); err != nil {
			return nil, err
		}
		sub.Language = domain.Language(lang)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStorage) RecordDelivered(ctx context.Context, userID int64, category domain.Category, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET last_delivered_at = $1 WHERE user_id = $2 AND category = $3`,
		at.UTC(), userID, string(category),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// === Interactions ===

func (s *PostgresStorage) LogInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO user_interactions (user_id, command, category, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		in.UserID, in.Command, in.Category, in.CreatedAt,
	).Scan(&in.ID)
}

func (s *PostgresStorage) CountInteractions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_interactions WHERE user_id = $1`, userID,
	).Scan(&n)
	return n, err
}
