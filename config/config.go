package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken       string
	TelegramAPIEndpoint string
	WebhookURL          string
	ServerPort          string

	DatabaseURL  string
	Timezone     *time.Location
	DeliveryTime string
	DefaultCity  string

	OpenAIKey          string
	OpenAIModel        string
	NewsAPIKey         string
	NewsFeedURL        string
	YouTubeAPIKey      string
	WeatherAPIKey      string
	TwitterBearerToken string

	RedisAddr       string
	RedisPassword   string
	ContentCacheTTL time.Duration

	SendRatePerSecond float64
	FireTimeout       time.Duration

	APIUsername string
	APIPassword string

	LogDebug  bool
	LogToFile bool
	LogsDir   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	tz, err := time.LoadLocation(getenv("TIMEZONE", "Africa/Addis_Ababa"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	deliveryTime := getenv("DELIVERY_TIME", "09:00")
	if _, _, err := ParseClock(deliveryTime); err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_TIME: %w", err)
	}

	cacheTTL, err := getDuration("CONTENT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	fireTimeout, err := getDuration("FIRE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	sendRate := 25.0
	if v := os.Getenv("SEND_RATE_PER_SECOND"); v != "" {
		sendRate, err = strconv.ParseFloat(v, 64)
		if err != nil || sendRate <= 0 {
			return nil, fmt.Errorf("SEND_RATE_PER_SECOND must be a positive number")
		}
	}

	return &Config{
		TelegramToken:       token,
		TelegramAPIEndpoint: getenv("TELEGRAM_API_ENDPOINT", tgbotapi.APIEndpoint),
		WebhookURL:          strings.TrimRight(os.Getenv("WEBHOOK_URL"), "/"),
		ServerPort:          getenv("SERVER_PORT", "8080"),

		DatabaseURL:  getenv("DATABASE_URL", "./data/pulsebot.db"),
		Timezone:     tz,
		DeliveryTime: deliveryTime,
		DefaultCity:  getenv("DEFAULT_CITY", "Addis Ababa"),

		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getenv("OPENAI_MODEL", "gpt-4o-mini"),
		NewsAPIKey:         os.Getenv("NEWS_API_KEY"),
		NewsFeedURL:        os.Getenv("NEWS_FEED_URL"),
		YouTubeAPIKey:      os.Getenv("YOUTUBE_API_KEY"),
		WeatherAPIKey:      os.Getenv("WEATHER_API_KEY"),
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		ContentCacheTTL: cacheTTL,

		SendRatePerSecond: sendRate,
		FireTimeout:       fireTimeout,

		APIUsername: os.Getenv("API_USERNAME"),
		APIPassword: os.Getenv("API_PASSWORD"),

		LogDebug:  getBool("LOG_DEBUG"),
		LogToFile: getBool("LOG_TO_FILE"),
		LogsDir:   os.Getenv("LOGS_DIR"),
	}, nil
}

// APIAuthEnabled reports whether the HTTP API requires basic auth
func (c *Config) APIAuthEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
