package service

import (
	"context"
	"fmt"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/storage"
)

type UserService struct {
	storage storage.Store
}

func NewUserService(s storage.Store) *UserService {
	return &UserService{storage: s}
}

// Touch records that the user talked to the bot, creating or refreshing
// their profile.
func (s *UserService) Touch(ctx context.Context, u *domain.User) error {
	if u.TelegramID == 0 {
		return fmt.Errorf("user id is required")
	}
	if err := s.storage.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	return s.storage.GetUser(ctx, telegramID)
}

// LogInteraction appends one command to the user's history. category may be empty.
func (s *UserService) LogInteraction(ctx context.Context, userID int64, command string, category domain.Category) error {
	return s.storage.LogInteraction(ctx, &domain.Interaction{
		UserID:   userID,
		Command:  command,
		Category: string(category),
	})
}

func (s *UserService) InteractionCount(ctx context.Context, userID int64) (int, error) {
	return s.storage.CountInteractions(ctx, userID)
}
