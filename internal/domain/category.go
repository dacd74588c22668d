package domain

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryNews    Category = "news"
	CategoryMemes   Category = "memes"
	CategoryVideos  Category = "videos"
	CategoryWeather Category = "weather"
	CategorySports  Category = "sports"
	CategorySocial  Category = "social"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		CategoryNews,
		CategoryMemes,
		CategoryVideos,
		CategoryWeather,
		CategorySports,
		CategorySocial,
	}
}

// ParseCategory parses a category name, case insensitive
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryNews, CategoryMemes, CategoryVideos, CategoryWeather, CategorySports, CategorySocial:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Emoji returns the tag shown next to the category in digests and keyboards
func (c Category) Emoji() string {
	switch c {
	case CategoryNews:
		return "📰"
	case CategoryMemes:
		return "😂"
	case CategoryVideos:
		return "🎬"
	case CategoryWeather:
		return "☀️"
	case CategorySports:
		return "⚽"
	case CategorySocial:
		return "🔥"
	}
	return "📱"
}

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Frequencies returns every supported delivery cadence.
func Frequencies() []Frequency {
	return []Frequency{FrequencyDaily, FrequencyWeekly}
}

func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

func (f Frequency) String() string {
	return string(f)
}

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageAmharic Language = "am"

	DefaultLanguage = LanguageEnglish
)

func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if l != LanguageEnglish && l != LanguageAmharic {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
	}
	return l, nil
}

// IsDefault reports whether text in this language needs no translation.
func (l Language) IsDefault() bool {
	return l == "" || l == DefaultLanguage
}

func (l Language) String() string {
	return string(l)
}
