package content

import (
	"strings"

	"github.com/tazhate/pulsebot/internal/domain"
)

// Built-in content served whenever an upstream is unconfigured or failing.

var mockNews = []domain.Item{
	{
		Title:       "Ethiopia Announces New Economic Reforms to Boost Growth",
		Description: "The Ethiopian government has announced a comprehensive series of economic reforms aimed at boosting growth and attracting foreign investment to the country.",
		URL:         "https://example.com/news/economic-reforms",
		ImageURL:    "https://example.com/images/ethiopia-economy.jpg",
	},
	{
		Title:       "Ethiopian Airlines Expands Fleet with 10 New Aircraft",
		Description: "Ethiopian Airlines has added ten new Boeing 737 MAX aircraft to its fleet as part of its ambitious expansion strategy.",
		URL:         "https://example.com/news/ethiopian-airlines",
		ImageURL:    "https://example.com/images/ethiopian-airlines.jpg",
	},
	{
		Title:       "Addis Ababa Hosts Major African Union Summit",
		Description: "The African Union headquarters in Addis Ababa is hosting a major summit focusing on continental trade and economic cooperation.",
		URL:         "https://example.com/news/au-summit",
		ImageURL:    "https://example.com/images/au-summit.jpg",
	},
	{
		Title:       "Ethiopia's Coffee Export Reaches Record High",
		Description: "Ethiopian coffee exports have reached a record high this year, contributing significantly to the country's foreign exchange earnings.",
		URL:         "https://example.com/news/coffee-export",
		ImageURL:    "https://example.com/images/coffee-export.jpg",
	},
	{
		Title:       "New Hydroelectric Dam Project Launched in Ethiopia",
		Description: "A new hydroelectric dam project has been launched in the Oromia region, expected to increase the country's power generation capacity.",
		URL:         "https://example.com/news/hydroelectric-dam",
		ImageURL:    "https://example.com/images/dam-project.jpg",
	},
}

var mockMemes = []domain.Item{
	{Title: "When you try to explain Ethiopian time to a foreigner 😂", ImageURL: "https://via.placeholder.com/500x400/FF6B6B/FFFFFF?text=Ethiopian+Meme+1"},
	{Title: "Me trying to eat injera with a fork for the first time", ImageURL: "https://via.placeholder.com/500x400/4ECDC4/FFFFFF?text=Ethiopian+Meme+2"},
	{Title: "When someone says they don't like Ethiopian coffee ☕", ImageURL: "https://via.placeholder.com/500x400/45B7D1/FFFFFF?text=Ethiopian+Meme+3"},
	{Title: "Ethiopian mothers when you haven't eaten in 2 hours", ImageURL: "https://via.placeholder.com/500x400/96CEB4/FFFFFF?text=Ethiopian+Meme+4"},
	{Title: "When you hear Ethiopian music and start dancing automatically 🎵", ImageURL: "https://via.placeholder.com/500x400/FFEAA7/000000?text=Ethiopian+Meme+5"},
}

var mockVideos = []domain.Item{
	{
		Title:       "Traditional Ethiopian Coffee Ceremony - Complete Guide",
		Description: "Learn about the traditional Ethiopian coffee ceremony, its cultural significance, and step-by-step process.",
		URL:         "https://www.youtube.com/watch?v=example1",
	},
	{
		Title:       "Exploring Addis Ababa - Ethiopia's Vibrant Capital",
		Description: "A comprehensive tour of Addis Ababa showcasing its culture, food, and attractions.",
		URL:         "https://www.youtube.com/watch?v=example2",
	},
	{
		Title:       "Ethiopian Traditional Music and Dance Performance",
		Description: "Experience the rich musical heritage of Ethiopia through traditional performances.",
		URL:         "https://www.youtube.com/watch?v=example3",
	},
	{
		Title:       "Lalibela Rock Churches - UNESCO World Heritage Site",
		Description: "Discover the magnificent rock-hewn churches of Lalibela, one of Ethiopia's most famous attractions.",
		URL:         "https://www.youtube.com/watch?v=example4",
	},
	{
		Title:       "Ethiopian Cuisine - Injera and Traditional Dishes",
		Description: "Learn about Ethiopian cuisine, including how injera is made and popular traditional dishes.",
		URL:         "https://www.youtube.com/watch?v=example5",
	},
}

var mockSports = []domain.Item{
	{
		Title:       "Ethiopian Premier League: St. George FC Wins Championship",
		Description: "St. George FC has clinched the Ethiopian Premier League title after a decisive 2-1 victory over Ethiopia Coffee FC in the final match of the season.",
		URL:         "https://example.com/sports/premier-league",
	},
	{
		Title:       "Ethiopian Athletes Dominate Berlin Marathon",
		Description: "Ethiopian runners secured the top three positions in both men's and women's categories at the Berlin Marathon.",
		URL:         "https://example.com/sports/berlin-marathon",
	},
	{
		Title:       "Haile Gebrselassie Opens New Athletics Training Center",
		Description: "Ethiopian running legend Haile Gebrselassie has inaugurated an athletics training center in Addis Ababa.",
		URL:         "https://example.com/sports/training-center",
	},
	{
		Title:       "Ethiopian National Football Team Qualifies for AFCON",
		Description: "The Ethiopian national football team has secured qualification for the Africa Cup of Nations after a 1-0 victory.",
		URL:         "https://example.com/sports/afcon-qualification",
	},
	{
		Title:       "Young Ethiopian Boxer Wins International Championship",
		Description: "19-year-old Ethiopian boxer Dawit Tekle has won the international youth boxing championship.",
		URL:         "https://example.com/sports/boxing-championship",
	},
}

var mockSocial = []domain.Item{
	{Title: "#EthiopianCuisine", Count: 15420, URL: "https://twitter.com/hashtag/EthiopianCuisine"},
	{Title: "#AddisAbaba", Count: 12350, URL: "https://twitter.com/hashtag/AddisAbaba"},
	{Title: "#EthiopianMusic", Count: 9870, URL: "https://twitter.com/hashtag/EthiopianMusic"},
	{Title: "#Timket", Count: 8640, URL: "https://twitter.com/hashtag/Timket"},
	{Title: "#EthiopianAirlines", Count: 7230, URL: "https://twitter.com/hashtag/EthiopianAirlines"},
	{Title: "#EthiopianCoffee", Count: 6890, URL: "https://twitter.com/hashtag/EthiopianCoffee"},
	{Title: "#Lalibela", Count: 5670, URL: "https://twitter.com/hashtag/Lalibela"},
	{Title: "#EthiopianCulture", Count: 4950, URL: "https://twitter.com/hashtag/EthiopianCulture"},
	{Title: "#VisitEthiopia", Count: 4320, URL: "https://twitter.com/hashtag/VisitEthiopia"},
	{Title: "#EthiopianFashion", Count: 3780, URL: "https://twitter.com/hashtag/EthiopianFashion"},
}

var mockWeather = map[string]domain.Weather{
	"addis ababa": {City: "Addis Ababa", Temperature: 22, Condition: "Partly cloudy", Humidity: 65, WindSpeed: 8},
	"dire dawa":   {City: "Dire Dawa", Temperature: 28, Condition: "Sunny", Humidity: 45, WindSpeed: 12},
	"mekelle":     {City: "Mekelle", Temperature: 25, Condition: "Clear sky", Humidity: 55, WindSpeed: 6},
	"bahir dar":   {City: "Bahir Dar", Temperature: 24, Condition: "Light rain", Humidity: 75, WindSpeed: 10},
}

// MockWeather returns the built-in conditions for city. Unknown cities get
// the Addis Ababa reading labelled with the requested name.
func MockWeather(city string) domain.Weather {
	if w, ok := mockWeather[strings.ToLower(strings.TrimSpace(city))]; ok {
		return w
	}
	w := mockWeather["addis ababa"]
	if strings.TrimSpace(city) != "" {
		w.City = strings.TrimSpace(city)
	}
	return w
}

func mockItems(category domain.Category) []domain.Item {
	var src []domain.Item
	switch category {
	case domain.CategoryNews:
		src = mockNews
	case domain.CategoryMemes:
		src = mockMemes
	case domain.CategoryVideos:
		src = mockVideos
	case domain.CategorySports:
		src = mockSports
	case domain.CategorySocial:
		src = mockSocial
	}
	out := make([]domain.Item, len(src))
	copy(out, src)
	return out
}
