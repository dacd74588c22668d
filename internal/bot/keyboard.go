package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/pulsebot/internal/domain"
)

// Callback data prefixes
const (
	cbSubscribe   = "sub"   // sub:<category>
	cbFrequency   = "subf"  // subf:<category>:<frequency>
	cbUnsubscribe = "unsub" // unsub:<category>
	cbLanguage    = "lang"  // lang:<code>
)

// Category picker, two buttons per row
func categoryKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range domain.Categories() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			c.Emoji()+" "+c.String(),
			cbSubscribe+":"+c.String(),
		))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func frequencyKeyboard(c domain.Category, m messages) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 "+m.daily, cbFrequency+":"+c.String()+":"+domain.FrequencyDaily.String()),
			tgbotapi.NewInlineKeyboardButtonData("🗓 "+m.weekly, cbFrequency+":"+c.String()+":"+domain.FrequencyWeekly.String()),
		),
	)
}

// One button per current subscription
func unsubscribeKeyboard(subs []*domain.Subscription) *tgbotapi.InlineKeyboardMarkup {
	if len(subs) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range subs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"🔕 "+s.Category.Emoji()+" "+s.Category.String()+" ("+s.Frequency.String()+")",
				cbUnsubscribe+":"+s.Category.String(),
			),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 English", cbLanguage+":"+domain.LanguageEnglish.String()),
			tgbotapi.NewInlineKeyboardButtonData("🇪🇹 አማርኛ", cbLanguage+":"+domain.LanguageAmharic.String()),
		),
	)
}
