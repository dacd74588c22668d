// Package calendar exports a user's digest subscriptions as recurring
// iCalendar events so the delivery times show up in a calendar app.
package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
)

const productID = "-//Pulsebot//Digest Schedule//EN"

// eventLength is how long each digest event blocks in the calendar.
const eventLength = 15 * time.Minute

// Rule returns the recurrence for f, starting at the first delivery after now.
func Rule(f domain.Frequency, at scheduler.DeliveryTime, loc *time.Location, now time.Time) (rrule.ROption, error) {
	start := scheduler.NextFireTimeAt(f, at, loc, now)
	if start.IsZero() {
		return rrule.ROption{}, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, f)
	}
	opt := rrule.ROption{Dtstart: start}
	switch f {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.MO}
	}
	return opt, nil
}

// Upcoming lists the next n deliveries for f.
func Upcoming(f domain.Frequency, at scheduler.DeliveryTime, loc *time.Location, now time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	opt, err := Rule(f, at, loc, now)
	if err != nil {
		return nil, err
	}
	opt.Count = n
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return r.All(), nil
}

// Export renders subs as a VCALENDAR with one recurring VEVENT per
// subscription. Subscriptions with an unknown frequency are skipped.
func Export(subs []*domain.Subscription, at scheduler.DeliveryTime, loc *time.Location, now time.Time) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, sub := range subs {
		opt, err := Rule(sub.Frequency, at, loc, now)
		if err != nil {
			continue
		}
		cal.Children = append(cal.Children, subscriptionEvent(sub, opt, at, loc, now).Component)
	}
	if len(cal.Children) == 0 {
		return nil, domain.ErrNotFound
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func subscriptionEvent(sub *domain.Subscription, opt rrule.ROption, at scheduler.DeliveryTime, loc *time.Location, now time.Time) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, fmt.Sprintf("%d-%s@pulsebot", sub.UserID, sub.Category))
	ev.Props.SetText(ical.PropSummary, fmt.Sprintf("%s %s %s digest", sub.Category.Emoji(), sub.Frequency, sub.Category))
	ev.Props.SetText(ical.PropDescription,
		fmt.Sprintf("Delivered in Telegram at %s %s", at.String(), loc.String()))

	// BYDAY is a weekday in loc, so the start must carry loc's TZID too
	start := opt.Dtstart.In(loc)
	ev.Props.SetDateTime(ical.PropDateTimeStart, start)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(eventLength))
	ev.Props.SetRecurrenceRule(&opt)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	return ev
}
