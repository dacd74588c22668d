package digest

import "github.com/tazhate/pulsebot/internal/domain"

type labels struct {
	daily, weekly string

	// scheduled header subject per category
	subject map[domain.Category]string
	// on-demand header per category; weather takes the city via %s
	title map[domain.Category]string

	readMore, watchVideo, viewMeme string

	temperature, condition, humidity, wind string

	empty string
}

var locales = map[domain.Language]labels{
	domain.LanguageEnglish: {
		daily:  "Daily %s Update",
		weekly: "Weekly %s Update",
		subject: map[domain.Category]string{
			domain.CategoryNews:    "News",
			domain.CategoryMemes:   "Memes",
			domain.CategoryVideos:  "Videos",
			domain.CategoryWeather: "Weather",
			domain.CategorySports:  "Sports",
			domain.CategorySocial:  "Social Media Trends",
		},
		title: map[domain.Category]string{
			domain.CategoryNews:    "Latest News",
			domain.CategoryMemes:   "Ethiopian Memes",
			domain.CategoryVideos:  "Popular Videos",
			domain.CategoryWeather: "Weather in %s",
			domain.CategorySports:  "Sports Updates",
			domain.CategorySocial:  "Social Media Trends",
		},
		readMore:    "Read more",
		watchVideo:  "Watch Video",
		viewMeme:    "View Meme",
		temperature: "Temperature",
		condition:   "Condition",
		humidity:    "Humidity",
		wind:        "Wind Speed",
		empty:       "No content available right now.",
	},
	domain.LanguageAmharic: {
		daily:  "ዕለታዊ %s ዝማኔ",
		weekly: "ሳምንታዊ %s ዝማኔ",
		subject: map[domain.Category]string{
			domain.CategoryNews:    "የዜና",
			domain.CategoryMemes:   "ሚም",
			domain.CategoryVideos:  "ቪዲዮ",
			domain.CategoryWeather: "የአየር ሁኔታ",
			domain.CategorySports:  "የስፖርት",
			domain.CategorySocial:  "የማህበራዊ ሚዲያ ትረንድ",
		},
		title: map[domain.Category]string{
			domain.CategoryNews:    "የቅርብ ጊዜ ዜናዎች",
			domain.CategoryMemes:   "ሚሞች",
			domain.CategoryVideos:  "ተወዳጅ ቪዲዮዎች",
			domain.CategoryWeather: "%s የአየር ሁኔታ",
			domain.CategorySports:  "የስፖርት ዜናዎች",
			domain.CategorySocial:  "የማህበራዊ ሚዲያ ትረንዶች",
		},
		readMore:    "ተጨማሪ ያንብቡ",
		watchVideo:  "ቪዲዮ ይመልከቱ",
		viewMeme:    "ሚሙን ይመልከቱ",
		temperature: "ሙቀት",
		condition:   "ሁኔታ",
		humidity:    "እርጥበት",
		wind:        "የነፋስ ፍጥነት",
		empty:       "በአሁኑ ጊዜ ምንም ይዘት የለም።",
	},
}

func localeFor(lang domain.Language) labels {
	if l, ok := locales[lang]; ok {
		return l
	}
	return locales[domain.DefaultLanguage]
}
