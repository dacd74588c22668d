// Package resilience guards calls to third-party content and translation
// APIs with a circuit breaker so a dead upstream is skipped quickly and the
// caller falls back to local data.
package resilience

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/tazhate/pulsebot/pkg/logger"
)

type Config struct {
	Name string

	// MaxRequests allowed through while half-open
	MaxRequests uint32

	// Interval after which closed-state counts are cleared
	Interval time.Duration

	// Timeout spent open before going half-open
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker
	FailureThreshold float64

	// MinRequests before the ratio is considered
	MinRequests uint32
}

// DefaultConfig suits the content APIs: a handful of calls per minute, each
// with a local fallback.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// TranslationConfig is looser because a digest fans out one call per item.
func TranslationConfig() Config {
	return Config{
		Name:             "openai",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

func New(cfg Config) *Breaker {
	log := logger.Named("resilience")
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed",
				"circuit", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Call runs fn through the breaker. An open breaker returns
// gobreaker.ErrOpenState without calling fn.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
