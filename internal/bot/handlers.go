package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/pulsebot/internal/domain"
)

// keywordRoutes maps free text to a category. The first match wins.
var keywordRoutes = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryNews, []string{"news", "ዜና"}},
	{domain.CategoryWeather, []string{"weather", "አየር ንብረት", "የአየር ሁኔታ"}},
	{domain.CategoryMemes, []string{"meme", "ሚም"}},
	{domain.CategorySports, []string{"sport", "football", "ስፖርት"}},
	{domain.CategoryVideos, []string{"video", "ቪዲዮ"}},
	{domain.CategorySocial, []string{"trend", "social", "ትረንድ"}},
}

func matchCategory(text string) (domain.Category, bool) {
	lower := strings.ToLower(text)
	for _, r := range keywordRoutes {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return r.category, true
			}
		}
	}
	return "", false
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	b.touchUser(ctx, msg.From)
	lang := b.subs.Language(ctx, msg.From.ID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, lang)
		return
	}
	b.handleText(ctx, msg.Chat.ID, msg.From.ID, text, lang)
}

func (b *Bot) touchUser(ctx context.Context, from *tgbotapi.User) {
	err := b.users.Touch(ctx, &domain.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	})
	if err != nil {
		b.log.Warnw("failed to save user", "user_id", from.ID, "error", err)
	}
}

func (b *Bot) logInteraction(ctx context.Context, userID int64, command string, category domain.Category) {
	if err := b.users.LogInteraction(ctx, userID, command, category); err != nil {
		b.log.Warnw("failed to log interaction", "user_id", userID, "command", command, "error", err)
	}
}

// handleText answers a plain message by guessing the category it asks for.
func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string, lang domain.Language) {
	category, ok := matchCategory(text)
	if !ok && b.detector != nil {
		category, ok = b.detector.DetectCategory(ctx, text)
	}
	b.logInteraction(ctx, userID, "natural_language", category)

	if !ok {
		b.reply(ctx, chatID, messagesFor(lang).askForContent)
		return
	}
	b.sendContent(ctx, chatID, userID, category, "")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	b.touchUser(ctx, cb.From)
	m := messagesFor(b.subs.Language(ctx, userID))

	parts := strings.Split(cb.Data, ":")
	var text string
	var keyboard *tgbotapi.InlineKeyboardMarkup

	switch parts[0] {
	case cbSubscribe:
		// sub:<category>
		if len(parts) != 2 {
			break
		}
		c, err := domain.ParseCategory(parts[1])
		if err != nil {
			break
		}
		text = formatf(m.pickFrequency, c)
		kb := frequencyKeyboard(c, m)
		keyboard = &kb

	case cbFrequency:
		// subf:<category>:<frequency>
		if len(parts) != 3 {
			break
		}
		c, errC := domain.ParseCategory(parts[1])
		f, errF := domain.ParseFrequency(parts[2])
		if errC != nil || errF != nil {
			break
		}
		b.logInteraction(ctx, userID, "subscribe", c)
		text = b.subscribe(ctx, userID, c, f, m)

	case cbUnsubscribe:
		// unsub:<category>
		if len(parts) != 2 {
			break
		}
		c, err := domain.ParseCategory(parts[1])
		if err != nil {
			break
		}
		b.logInteraction(ctx, userID, "unsubscribe", c)
		text = b.unsubscribe(ctx, userID, c, m)

	case cbLanguage:
		// lang:<code>
		if len(parts) != 2 {
			break
		}
		text = b.setLanguage(ctx, userID, parts[1])
	}

	if text != "" {
		var edit tgbotapi.EditMessageTextConfig
		if keyboard != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, *keyboard)
		} else {
			edit = tgbotapi.NewEditMessageText(chatID, msgID, text)
		}
		edit.ParseMode = tgbotapi.ModeHTML
		if err := b.sender.Request(ctx, edit); err != nil {
			b.log.Warnw("failed to edit message", "chat_id", chatID, "error", err)
		}
	}

	if err := b.sender.Request(ctx, tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debugw("failed to answer callback", "error", err)
	}
}
