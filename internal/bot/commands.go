package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/pulsebot/internal/domain"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	cmd := strings.ToLower(msg.Command())
	args := strings.TrimSpace(msg.CommandArguments())
	m := messagesFor(lang)

	category, _ := domain.ParseCategory(cmd)
	b.logInteraction(ctx, userID, cmd, category)

	switch cmd {
	case "start":
		b.reply(ctx, chatID, m.welcome)
	case "help":
		b.reply(ctx, chatID, m.help)
	case "news", "videos", "weather":
		b.sendContent(ctx, chatID, userID, category, args)
	case "memes", "sports", "social":
		b.sendContent(ctx, chatID, userID, category, "")
	case "subscribe":
		b.cmdSubscribe(ctx, chatID, userID, args, m)
	case "unsubscribe":
		b.cmdUnsubscribe(ctx, chatID, userID, args, m)
	case "subscriptions":
		b.cmdSubscriptions(ctx, chatID, userID, m)
	case "language":
		b.cmdLanguage(ctx, chatID, userID, args, m)
	default:
		b.reply(ctx, chatID, m.unknownCommand)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.SendMessage(ctx, chatID, text); err != nil {
		b.log.Warnw("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyWithKeyboard(ctx context.Context, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if err := b.SendMessageWithKeyboard(ctx, chatID, text, kb); err != nil {
		b.log.Warnw("failed to send reply", "chat_id", chatID, "error", err)
	}
}

// sendContent answers an on-demand request for category.
func (b *Bot) sendContent(ctx context.Context, chatID, userID int64, category domain.Category, filter string) {
	d, err := b.content.Digest(ctx, userID, category, filter)
	if err != nil {
		b.log.Errorw("failed to compose digest", "category", category, "error", err)
		b.reply(ctx, chatID, messagesFor(b.subs.Language(ctx, userID)).failed)
		return
	}
	if err := b.sender.Deliver(ctx, chatID, d.Text, d.Options); err != nil {
		b.log.Warnw("failed to deliver digest",
			"chat_id", chatID,
			"category", category,
			"error", err,
		)
	}
}

func (b *Bot) cmdSubscribe(ctx context.Context, chatID, userID int64, args string, m messages) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.replyWithKeyboard(ctx, chatID, m.pickCategory, categoryKeyboard())
		return
	}

	c, err := domain.ParseCategory(fields[0])
	if err != nil {
		b.reply(ctx, chatID, formatf(m.invalidCategory, categoryList()))
		return
	}
	if len(fields) == 1 {
		b.replyWithKeyboard(ctx, chatID, formatf(m.pickFrequency, c), frequencyKeyboard(c, m))
		return
	}

	f, err := domain.ParseFrequency(fields[1])
	if err != nil {
		b.reply(ctx, chatID, formatf(m.invalidFrequency, frequencyList()))
		return
	}
	b.reply(ctx, chatID, b.subscribe(ctx, userID, c, f, m))
}

// subscribe returns the confirmation to show the user.
func (b *Bot) subscribe(ctx context.Context, userID int64, c domain.Category, f domain.Frequency, m messages) string {
	sub, err := b.subs.Subscribe(ctx, userID, c, f)
	if err != nil {
		b.log.Errorw("subscribe failed",
			"user_id", userID,
			"category", c,
			"frequency", f,
			"error", err,
		)
	}
	if sub == nil {
		return m.failed
	}
	return fmt.Sprintf(m.subscribed, c, m.frequency(f))
}

func (b *Bot) cmdUnsubscribe(ctx context.Context, chatID, userID int64, args string, m messages) {
	if args == "" {
		subs, err := b.subs.List(ctx, userID)
		if err != nil {
			b.log.Errorw("list subscriptions failed", "user_id", userID, "error", err)
			b.reply(ctx, chatID, m.failed)
			return
		}
		kb := unsubscribeKeyboard(subs)
		if kb == nil {
			b.reply(ctx, chatID, m.noSubscriptions)
			return
		}
		b.replyWithKeyboard(ctx, chatID, m.pickUnsubscribe, *kb)
		return
	}

	c, err := domain.ParseCategory(strings.Fields(args)[0])
	if err != nil {
		b.reply(ctx, chatID, formatf(m.invalidCategory, categoryList()))
		return
	}
	b.reply(ctx, chatID, b.unsubscribe(ctx, userID, c, m))
}

func (b *Bot) unsubscribe(ctx context.Context, userID int64, c domain.Category, m messages) string {
	err := b.subs.Unsubscribe(ctx, userID, c)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return formatf(m.notSubscribed, c)
	case err != nil:
		b.log.Errorw("unsubscribe failed", "user_id", userID, "category", c, "error", err)
		return m.failed
	}
	return formatf(m.unsubscribed, c)
}

func (b *Bot) cmdSubscriptions(ctx context.Context, chatID, userID int64, m messages) {
	subs, err := b.subs.List(ctx, userID)
	if err != nil {
		b.log.Errorw("list subscriptions failed", "user_id", userID, "error", err)
		b.reply(ctx, chatID, m.failed)
		return
	}
	if len(subs) == 0 {
		b.reply(ctx, chatID, m.noSubscriptions)
		return
	}
	b.reply(ctx, chatID, m.subscriptionsHeader+"\n\n"+html.EscapeString(b.subs.FormatList(subs)))
}

func (b *Bot) cmdLanguage(ctx context.Context, chatID, userID int64, args string, m messages) {
	if args == "" {
		b.replyWithKeyboard(ctx, chatID, m.languageUsage, languageKeyboard())
		return
	}
	b.reply(ctx, chatID, b.setLanguage(ctx, userID, args))
}

// setLanguage answers in the newly chosen language.
func (b *Bot) setLanguage(ctx context.Context, userID int64, code string) string {
	lang, err := domain.ParseLanguage(code)
	if err != nil {
		return messagesFor(b.subs.Language(ctx, userID)).languageUsage
	}
	if err := b.subs.SetLanguage(ctx, userID, lang); err != nil {
		b.log.Errorw("set language failed", "user_id", userID, "error", err)
		return messagesFor(lang).failed
	}
	return messagesFor(lang).languageSet
}

func formatf(pattern string, arg any) string {
	return fmt.Sprintf(pattern, html.EscapeString(fmt.Sprint(arg)))
}

func categoryList() string {
	names := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}

func frequencyList() string {
	names := make([]string, 0, len(domain.Frequencies()))
	for _, f := range domain.Frequencies() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
