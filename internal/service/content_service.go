package service

import (
	"context"
	"fmt"

	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
	"github.com/tazhate/pulsebot/internal/storage"
)

// ContentService answers on-demand category requests from chat.
type ContentService struct {
	storage  storage.Store
	provider scheduler.ContentProvider
	composer scheduler.Composer
}

func NewContentService(s storage.Store, p scheduler.ContentProvider, c scheduler.Composer) *ContentService {
	return &ContentService{storage: s, provider: p, composer: c}
}

// Digest fetches and renders category for userID in their language. filter
// is a topic for news and videos or a city for weather.
func (s *ContentService) Digest(ctx context.Context, userID int64, category domain.Category, filter string) (digest.Digest, error) {
	if !category.Valid() {
		return digest.Digest{}, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	lang, err := s.storage.UserLanguage(ctx, userID)
	if err != nil || lang == "" {
		lang = domain.DefaultLanguage
	}
	content := s.provider.Fetch(ctx, category, filter)
	return s.composer.Compose(ctx, category, content, lang, digest.ModeOnDemand), nil
}
