// Package ai wraps the OpenAI chat API for translation between English and
// Amharic and for guessing which category a free-text message asks for.
// Every call degrades to a harmless default instead of returning an error.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/resilience"
	"github.com/tazhate/pulsebot/pkg/logger"
)

// minTranslateLen is the shortest input worth a round trip
const minTranslateLen = 3

// Translator returns text in the target language, or the original text when
// translation is impossible. Implementations must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text string, from, to domain.Language) string
}

// NoopTranslator returns its input unchanged.
type NoopTranslator struct{}

func (NoopTranslator) Translate(_ context.Context, text string, _, _ domain.Language) string {
	return text
}

type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *resilience.Breaker
	log     *zap.SugaredLogger
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIWithConfig allows pointing the client at a compatible endpoint.
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: 30 * time.Second,
		breaker: resilience.New(resilience.TranslationConfig()),
		log:     logger.Named("ai"),
	}
}

func languageName(l domain.Language) string {
	if l == domain.LanguageAmharic {
		return "Amharic"
	}
	return "English"
}

func (o *OpenAI) Translate(ctx context.Context, text string, from, to domain.Language) string {
	if len(strings.TrimSpace(text)) < minTranslateLen || from == to {
		return text
	}

	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Only return the translation, no explanations:\n\n%s",
		languageName(from), languageName(to), text,
	)
	out, err := o.complete(ctx,
		"You are a professional translator specializing in English and Amharic. Provide accurate, natural translations that preserve the original meaning and tone.",
		prompt,
	)
	if err != nil || out == "" {
		o.log.Debugw("translation failed, keeping original", "to", to, "error", err)
		return text
	}
	return out
}

// DetectCategory asks the model which category message refers to. ok is
// false for "general" answers and on any failure.
func (o *OpenAI) DetectCategory(ctx context.Context, message string) (domain.Category, bool) {
	names := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		names = append(names, c.String())
	}
	prompt := fmt.Sprintf(
		"Analyze this user message and determine what type of content they're asking for. Return only one word from: %s, general\n\nMessage: %q",
		strings.Join(names, ", "), message,
	)
	out, err := o.complete(ctx,
		"You are a content categorization system. Analyze user messages and return the most appropriate content category.",
		prompt,
	)
	if err != nil {
		o.log.Debugw("category detection failed", "error", err)
		return "", false
	}
	c, err := domain.ParseCategory(strings.Trim(out, " .\"'\n"))
	if err != nil {
		return "", false
	}
	return c, true
}

func (o *OpenAI) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	return resilience.Call(o.breaker, func() (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.2,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}
