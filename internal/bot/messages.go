package bot

import (
	"github.com/tazhate/pulsebot/internal/domain"
)

type messages struct {
	welcome, help string

	unknownCommand, askForContent string

	subscribeUsage, pickCategory, pickFrequency string
	invalidCategory, invalidFrequency          string
	subscribed                                 string // category, frequency
	unsubscribed, notSubscribed                string // category
	noSubscriptions, subscriptionsHeader       string
	pickUnsubscribe                            string

	languageUsage, languageSet string

	daily, weekly string

	failed string
}

const helpCommandsEN = `📰 /news [topic] - Get latest news
😂 /memes - View trending memes
🎬 /videos [topic] - Watch popular videos
☀️ /weather [city] - Check weather
⚽ /sports - Get sports updates
🔥 /social - See social media trends
🔔 /subscribe [category] [daily|weekly] - Subscribe to updates
🔕 /unsubscribe [category] - Stop updates
📋 /subscriptions - Your subscriptions
🌐 /language [en|am] - Set your language
❓ /help - Show this help message`

const helpCommandsAM = `📰 /news [ርዕስ] - የቅርብ ጊዜ ዜናዎችን ያግኙ
😂 /memes - ተወዳጅ ሚሞችን ይመልከቱ
🎬 /videos [ርዕስ] - ተወዳጅ ቪዲዮዎችን ይመልከቱ
☀️ /weather [ከተማ] - የአየር ሁኔታን ይመልከቱ
⚽ /sports - የስፖርት ዜናዎችን ያግኙ
🔥 /social - የማህበራዊ ሚዲያ ትረንዶችን ይመልከቱ
🔔 /subscribe [ምድብ] [daily|weekly] - ለዝማኔዎች ይመዝገቡ
🔕 /unsubscribe [ምድብ] - ምዝገባ ያቋርጡ
📋 /subscriptions - ምዝገባዎችዎ
🌐 /language [en|am] - የቋንቋ ምርጫዎን ያቀናብሩ
❓ /help - ይህን የእገዛ መልዕክት ያሳይ`

var botMessages = map[domain.Language]messages{
	domain.LanguageEnglish: {
		welcome: "🇪🇹 <b>Welcome to PulseBot!</b> 👋\n\n" +
			"I deliver trending Ethiopian and global content including news, memes, videos, weather updates, sports, and social media highlights.\n\n" +
			"<b>Available Commands:</b>\n" + helpCommandsEN + "\n\n" +
			"You can also ask me in natural language, for example \"Show me Ethiopian news\".",
		help: "🇪🇹 <b>PulseBot Commands</b>\n\n" + helpCommandsEN + "\n\n" +
			"<b>Examples:</b>\n• \"Show me Ethiopian news\"\n• \"What's the weather in Addis Ababa?\"",
		unknownCommand:      "Command not recognized. Type /help for available commands.",
		askForContent:       "Please ask for specific content or use /help to see available commands.",
		subscribeUsage:      "Please use the correct format: /subscribe [category] [daily|weekly]\n\nExample: /subscribe news daily",
		pickCategory:        "🔔 Choose a category to subscribe to:",
		pickFrequency:       "How often should I send %s updates?",
		invalidCategory:     "Invalid category. Please choose from: %s",
		invalidFrequency:    "Invalid frequency. Please choose from: %s",
		subscribed:          "✅ You've been subscribed to %[2]s %[1]s updates.",
		unsubscribed:        "🔕 You've been unsubscribed from %s updates.",
		notSubscribed:       "You are not subscribed to %s updates.",
		noSubscriptions:     "You have no subscriptions yet. Use /subscribe to add one.",
		subscriptionsHeader: "📋 <b>Your subscriptions</b>",
		pickUnsubscribe:     "🔕 Choose a subscription to cancel:",
		languageUsage:       "Please specify either \"en\" for English or \"am\" for Amharic.\n\nExample: /language am",
		languageSet:         "✅ Your language preference has been set to English.",
		daily:               "daily",
		weekly:              "weekly",
		failed:              "Sorry, something went wrong. Please try again later.",
	},
	domain.LanguageAmharic: {
		welcome: "🇪🇹 <b>ወደ PulseBot እንኳን በደህና መጡ!</b> 👋\n\n" +
			"የኢትዮጵያ እና የዓለም ዜናዎችን፣ ሚሞችን፣ ቪዲዮዎችን፣ የአየር ሁኔታን፣ ስፖርትን እና የማህበራዊ ሚዲያ ትረንዶችን አቀርባለሁ።\n\n" +
			"<b>ትዕዛዞች:</b>\n" + helpCommandsAM,
		help: "🇪🇹 <b>የPulseBot ትዕዛዞች</b>\n\n" + helpCommandsAM + "\n\n" +
			"<b>ምሳሌዎች:</b>\n• \"የኢትዮጵያ ዜና አሳየኝ\"\n• \"በአዲስ አበባ የአየር ሁኔታ ምንድን ነው?\"",
		unknownCommand:      "ትዕዛዝ አልተገነዘበም። /help ይጠቀሙ።",
		askForContent:       "እባክዎ የሚፈልጉትን ይጠይቁ ወይም /help ይጠቀሙ።",
		subscribeUsage:      "እባክዎ ትክክለኛ ቅርጸት ይጠቀሙ: /subscribe [category] [daily|weekly]\n\nምሳሌ: /subscribe news daily",
		pickCategory:        "🔔 ለመመዝገብ ምድብ ይምረጡ:",
		pickFrequency:       "የ%s ዝማኔዎችን በምን ያህል ጊዜ ልላክ?",
		invalidCategory:     "ልክ ያልሆነ ምድብ። እባክዎ ከሚከተሉት ይምረጡ: %s",
		invalidFrequency:    "ልክ ያልሆነ ድግግሞሽ። እባክዎ ከሚከተሉት ይምረጡ: %s",
		subscribed:          "✅ ለ%[1]s %[2]s ማሳወቂያዎች ተመዝግበዋል።",
		unsubscribed:        "🔕 የ%s ምዝገባዎ ተቋርጧል።",
		notSubscribed:       "ለ%s አልተመዘገቡም።",
		noSubscriptions:     "እስካሁን ምንም ምዝገባ የለዎትም። /subscribe ይጠቀሙ።",
		subscriptionsHeader: "📋 <b>ምዝገባዎችዎ</b>",
		pickUnsubscribe:     "🔕 የሚያቋርጡትን ምዝገባ ይምረጡ:",
		languageUsage:       "እባክዎ \"en\" ለእንግሊዝኛ ወይም \"am\" ለአማርኛ ይጥቀሱ።\n\nምሳሌ: /language am",
		languageSet:         "✅ የቋንቋ ምርጫዎ ወደ አማርኛ ተቀይሯል።",
		daily:               "ዕለታዊ",
		weekly:              "ሳምንታዊ",
		failed:              "ይቅርታ፣ ስህተት ተፈጥሯል። እባክዎ ቆይተው ይሞክሩ።",
	},
}

func messagesFor(lang domain.Language) messages {
	if m, ok := botMessages[lang]; ok {
		return m
	}
	return botMessages[domain.DefaultLanguage]
}

func (m messages) frequency(f domain.Frequency) string {
	if f == domain.FrequencyWeekly {
		return m.weekly
	}
	return m.daily
}
