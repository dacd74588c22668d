package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/pulsebot/internal/domain"
)

// DeliveryTime is the wall-clock moment scheduled digests go out.
type DeliveryTime struct {
	Hour   int
	Minute int
}

// DefaultDeliveryTime is 09:00.
var DefaultDeliveryTime = DeliveryTime{Hour: 9}

// ParseDeliveryTime reads "HH:MM"; an empty string means the default.
func ParseDeliveryTime(s string) (DeliveryTime, error) {
	if s == "" {
		return DefaultDeliveryTime, nil
	}
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return DeliveryTime{}, fmt.Errorf("delivery time %q: expected HH:MM", s)
	}
	return DeliveryTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (d DeliveryTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Spec returns the cron expression for f: every day at the delivery time,
// or every Monday for weekly subscriptions.
func Spec(f domain.Frequency, at DeliveryTime) (string, error) {
	switch f {
	case domain.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", at.Minute, at.Hour), nil
	case domain.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * 1", at.Minute, at.Hour), nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, f)
}

func scheduleFor(f domain.Frequency, at DeliveryTime) (cron.Schedule, error) {
	spec, err := Spec(f, at)
	if err != nil {
		return nil, err
	}
	return specParser.Parse(spec)
}

// NextFireTime returns the first default-time delivery strictly after now,
// evaluated as wall-clock time in loc. It returns the zero time for an
// invalid frequency.
func NextFireTime(f domain.Frequency, loc *time.Location, now time.Time) time.Time {
	return NextFireTimeAt(f, DefaultDeliveryTime, loc, now)
}

// NextFireTimeAt is NextFireTime for an explicit delivery time.
func NextFireTimeAt(f domain.Frequency, at DeliveryTime, loc *time.Location, now time.Time) time.Time {
	sched, err := scheduleFor(f, at)
	if err != nil {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return sched.Next(now.In(loc)).In(loc)
}
