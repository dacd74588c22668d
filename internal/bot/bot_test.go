package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/pulsebot/internal/domain"
)

func TestDeliver(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	err := h.bot.sender.Deliver(ctx, 100, "<b>hi</b>", domain.FormatOptions{ParseMode: "HTML", DisableWebPagePreview: true})
	require.NoError(t, err)
	sent := h.tg.calls("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "100", sent[0].Get("chat_id"))
	assert.Equal(t, "HTML", sent[0].Get("parse_mode"))
	assert.Equal(t, "true", sent[0].Get("disable_web_page_preview"))
}

func TestDeliverClassifiesErrors(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.tg.failures["403"] = 403
	h.tg.failures["400"] = 400
	h.tg.failures["500"] = 500

	err := h.bot.sender.Deliver(ctx, 403, "x", domain.FormatOptions{})
	assert.ErrorIs(t, err, domain.ErrRecipientBlocked)

	err = h.bot.sender.Deliver(ctx, 400, "x", domain.FormatOptions{})
	assert.ErrorIs(t, err, domain.ErrMalformedMessage)

	err = h.bot.sender.Deliver(ctx, 500, "x", domain.FormatOptions{})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.False(t, errors.Is(err, domain.ErrRecipientBlocked))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = h.bot.sender.Deliver(cctx, 1, "x", domain.FormatOptions{})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.send(7, "/start")
	assert.Contains(t, h.tg.lastText(t), "Welcome to PulseBot")

	u, err := h.store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "sara", u.Username)

	n, err := h.store.CountInteractions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestContentCommands(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.send(7, "/news")
	assert.Contains(t, h.tg.lastText(t), "Latest News")
	assert.Contains(t, h.tg.lastText(t), "Headline news")

	h.send(7, "/weather Dire Dawa")
	text := h.tg.lastText(t)
	assert.Contains(t, text, "Weather in Dire Dawa")
	assert.Contains(t, text, "22°C")
	assert.Contains(t, text, "Partly cloudy")

	h.send(7, "/bogus")
	assert.Contains(t, h.tg.lastText(t), "Command not recognized")
}

func TestSubscribeCommand(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.send(7, "/subscribe news daily")
	assert.Contains(t, h.tg.lastText(t), "subscribed to daily news updates")
	assert.Equal(t, []timerCall{{"arm", 7, domain.CategoryNews, domain.FrequencyDaily}}, h.timers.calls)

	sub, err := h.store.GetSubscription(ctx, 7, domain.CategoryNews)
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyDaily, sub.Frequency)

	h.send(7, "/subscribe gossip daily")
	assert.Contains(t, h.tg.lastText(t), "Invalid category")

	h.send(7, "/subscribe news hourly")
	assert.Contains(t, h.tg.lastText(t), "Invalid frequency")

	h.send(7, "/subscriptions")
	text := h.tg.lastText(t)
	assert.Contains(t, text, "Your subscriptions")
	assert.Contains(t, text, "news: daily")
}

func TestSubscribeKeyboardFlow(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.send(7, "/subscribe")
	sent := h.tg.calls("sendMessage")
	require.NotEmpty(t, sent)
	assert.Contains(t, sent[len(sent)-1].Get("reply_markup"), "sub:news")

	h.press(7, "sub:sports")
	edits := h.tg.calls("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Get("reply_markup"), "subf:sports:weekly")

	h.press(7, "subf:sports:weekly")
	edits = h.tg.calls("editMessageText")
	require.Len(t, edits, 2)
	assert.Contains(t, edits[1].Get("text"), "weekly sports updates")
	assert.Equal(t, []timerCall{{"arm", 7, domain.CategorySports, domain.FrequencyWeekly}}, h.timers.calls)
	assert.Len(t, h.tg.calls("answerCallbackQuery"), 2)

	// garbage callback data is answered and otherwise ignored
	h.press(7, "subf:sports")
	assert.Len(t, h.tg.calls("editMessageText"), 2)
	assert.Len(t, h.tg.calls("answerCallbackQuery"), 3)
}

func TestUnsubscribeCommand(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.send(7, "/unsubscribe")
	assert.Contains(t, h.tg.lastText(t), "no subscriptions")

	h.send(7, "/unsubscribe memes")
	assert.Contains(t, h.tg.lastText(t), "not subscribed to memes")

	h.send(7, "/subscribe memes weekly")
	h.send(7, "/unsubscribe")
	sent := h.tg.calls("sendMessage")
	assert.Contains(t, sent[len(sent)-1].Get("reply_markup"), "unsub:memes")

	h.press(7, "unsub:memes")
	edits := h.tg.calls("editMessageText")
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[len(edits)-1].Get("text"), "unsubscribed from memes")
	assert.Equal(t, timerCall{"disarm", 7, domain.CategoryMemes, ""}, h.timers.calls[len(h.timers.calls)-1])
}

func TestLanguageCommand(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.send(7, "/language fr")
	assert.Contains(t, h.tg.lastText(t), "Please specify either")

	h.send(7, "/language am")
	assert.Equal(t, messagesFor(domain.LanguageAmharic).languageSet, h.tg.lastText(t))

	h.send(7, "/bogus")
	assert.Equal(t, messagesFor(domain.LanguageAmharic).unknownCommand, h.tg.lastText(t))

	h.press(7, "lang:en")
	edits := h.tg.calls("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, messagesFor(domain.LanguageEnglish).languageSet, edits[0].Get("text"))
}

func TestNaturalLanguage(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.send(7, "Show me Ethiopian news")
	assert.Contains(t, h.tg.lastText(t), "Latest News")

	h.send(7, "የአየር ሁኔታ ምንድን ነው?")
	assert.Contains(t, h.tg.lastText(t), "Weather in Addis Ababa")

	h.send(7, "hello there")
	assert.Equal(t, messagesFor(domain.LanguageEnglish).askForContent, h.tg.lastText(t))

	withAI := newHarness(t, nil, stubDetector{category: domain.CategoryMemes})
	withAI.send(8, "make me laugh")
	assert.Contains(t, withAI.tg.lastText(t), "Ethiopian Memes")
}

func TestMatchCategory(t *testing.T) {
	cases := []struct {
		text string
		want domain.Category
		ok   bool
	}{
		{"Any NEWS today?", domain.CategoryNews, true},
		{"ዜና", domain.CategoryNews, true},
		{"weather in Mekelle", domain.CategoryWeather, true},
		{"funny memes please", domain.CategoryMemes, true},
		{"football scores", domain.CategorySports, true},
		{"what's trending", domain.CategorySocial, true},
		{"good morning", "", false},
	}
	for _, tc := range cases {
		got, ok := matchCategory(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestIgnoresMessagesWithoutSender(t *testing.T) {
	h := newHarness(t, nil, nil)
	msg := message(7, "/start")
	msg.From = nil
	h.bot.handleMessage(context.Background(), msg)
	assert.Empty(t, h.tg.calls("sendMessage"))
}
