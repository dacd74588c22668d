package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tazhate/pulsebot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

var _ Store = (*Storage)(nil)

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id INTEGER PRIMARY KEY,
			language TEXT NOT NULL DEFAULT 'en',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id INTEGER NOT NULL,
			category TEXT NOT NULL,
			frequency TEXT NOT NULL,
			last_delivered_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_bucket ON subscriptions(category, frequency)`,
		`CREATE TABLE IF NOT EXISTS user_interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			command TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_interactions_user_id ON user_interactions(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Users ===

func (s *Storage) SaveUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.CreatedAt,
	)
	return err
}

func (s *Storage) GetUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT telegram_id, username, first_name, last_name, created_at FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

// === Preferences ===

func (s *Storage) SetUserLanguage(ctx context.Context, userID int64, lang domain.Language) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, language, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, updated_at = excluded.updated_at`,
		userID, string(lang), time.Now().UTC(),
	)
	return err
}

func (s *Storage) UserLanguage(ctx context.Context, userID int64) (domain.Language, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		`SELECT language FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultLanguage, nil
	}
	if err != nil {
		return "", err
	}
	return domain.Language(lang), nil
}

// === Subscriptions ===

func (s *Storage) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, category, frequency, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, category) DO UPDATE SET
			frequency = excluded.frequency,
			updated_at = excluded.updated_at`,
		sub.UserID, string(sub.Category), string(sub.Frequency), sub.CreatedAt, sub.UpdatedAt,
	)
	return err
}

func (s *Storage) DeleteSubscription(ctx context.Context, userID int64, category domain.Category) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = ? AND category = ?`, userID, string(category),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const subscriptionColumns = `user_id, category, frequency, last_delivered_at, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	var category, frequency string
	var delivered sql.NullTime
	if err := row.Scan(&sub.UserID, &category, &frequency, &delivered, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Category = domain.Category(category)
	sub.Frequency = domain.Frequency(frequency)
	if delivered.Valid {
		t := delivered.Time
		sub.LastDeliveredAt = &t
	}
	return sub, nil
}

func (s *Storage) GetSubscription(ctx context.Context, userID int64, category domain.Category) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND category = ?`,
		userID, string(category),
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sub, err
}

func (s *Storage) ListUserSubscriptions(ctx context.Context, userID int64) ([]*domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY category`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Storage) ListSubscribers(ctx context.Context, category domain.Category, frequency domain.Frequency) ([]domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.user_id, COALESCE(p.language, 'en')
		 FROM subscriptions s
		 LEFT JOIN user_preferences p ON p.user_id = s.user_id
		 WHERE s.category = ? AND s.frequency = ?
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

func (s *Storage) RecordDelivered(ctx context.Context, userID int64, category domain.Category, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_delivered_at = ? WHERE user_id = ? AND category = ?`,
		at.UTC(), userID, string(category),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// === Interactions ===

func (s *Storage) LogInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_interactions (user_id, command, category, created_at) VALUES (?, ?, ?, ?)`,
		in.UserID, in.Command, in.Category, in.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	in.ID = id
	return nil
}

// CountInteractions returns how many commands the user has issued.
func (s *Storage) CountInteractions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_interactions WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, err
}
