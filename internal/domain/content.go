package domain

// Item is one piece of fetched content. Count is only set for social trends.
type Item struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	Count       int
}

type Weather struct {
	City        string
	Temperature int // °C
	Condition   string
	Humidity    int // %
	WindSpeed   int // km/h
}

// Content is what a provider returns for one category. Weather is set only for
// CategoryWeather; every other category fills Items.
type Content struct {
	Category Category
	Items    []Item
	Weather  *Weather
	Fallback bool
}

// FormatOptions are passed through to the message dispatcher.
type FormatOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
}
