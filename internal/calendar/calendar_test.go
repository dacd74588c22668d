package calendar

import (
	"bytes"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
)

func addis(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Addis_Ababa")
	require.NoError(t, err)
	return loc
}

func TestUpcomingMatchesScheduler(t *testing.T) {
	loc := addis(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, loc) // Wednesday

	daily, err := Upcoming(domain.FrequencyDaily, scheduler.DefaultDeliveryTime, loc, now, 3)
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.True(t, daily[0].Equal(scheduler.NextFireTime(domain.FrequencyDaily, loc, now)))
	assert.True(t, daily[2].Equal(time.Date(2026, 3, 7, 9, 0, 0, 0, loc)))

	weekly, err := Upcoming(domain.FrequencyWeekly, scheduler.DefaultDeliveryTime, loc, now, 2)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	for _, w := range weekly {
		assert.Equal(t, time.Monday, w.In(loc).Weekday())
		assert.Equal(t, 9, w.In(loc).Hour())
	}
	assert.True(t, weekly[1].Equal(time.Date(2026, 3, 16, 9, 0, 0, 0, loc)))

	_, err = Upcoming("hourly", scheduler.DefaultDeliveryTime, loc, now, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	none, err := Upcoming(domain.FrequencyDaily, scheduler.DefaultDeliveryTime, loc, now, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExport(t *testing.T) {
	loc := addis(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, loc)
	subs := []*domain.Subscription{
		{UserID: 7, Category: domain.CategoryNews, Frequency: domain.FrequencyDaily},
		{UserID: 7, Category: domain.CategorySports, Frequency: domain.FrequencyWeekly},
		{UserID: 7, Category: domain.CategoryMemes, Frequency: "hourly"},
	}

	data, err := Export(subs, scheduler.DefaultDeliveryTime, loc, now)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "BEGIN:VCALENDAR")
	assert.Contains(t, text, "PRODID:"+productID)

	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	byUID := map[string]ical.Event{}
	for _, ev := range events {
		uid, err := ev.Props.Text(ical.PropUID)
		require.NoError(t, err)
		byUID[uid] = ev
	}

	news, ok := byUID["7-news@pulsebot"]
	require.True(t, ok)
	start, err := news.DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC)), start.String())
	rule, err := news.Props.RecurrenceRule()
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, rrule.DAILY, rule.Freq)
	assert.Empty(t, rule.Byweekday)

	sports, ok := byUID["7-sports@pulsebot"]
	require.True(t, ok)
	rule, err = sports.Props.RecurrenceRule()
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, rrule.WEEKLY, rule.Freq)
	assert.Equal(t, []rrule.Weekday{rrule.MO}, rule.Byweekday)
	assert.Contains(t, text, "BYDAY=MO")
}

func TestExportWithoutSubscriptions(t *testing.T) {
	_, err := Export(nil, scheduler.DefaultDeliveryTime, time.UTC, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportWeeklyKeepsLocalWeekday(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		loc  *time.Location
		at   scheduler.DeliveryTime
		now  time.Time
		want string
	}{
		{
			// Monday 18:00 PST is Tuesday 02:00 UTC
			name: "evening west of UTC",
			loc:  la,
			at:   scheduler.DeliveryTime{Hour: 18},
			now:  time.Date(2026, 2, 25, 12, 0, 0, 0, la),
			want: "DTSTART;TZID=America/Los_Angeles:20260302T180000",
		},
		{
			// Monday 01:30 EAT is Sunday 22:30 UTC
			name: "early morning east of UTC",
			loc:  addis(t),
			at:   scheduler.DeliveryTime{Hour: 1, Minute: 30},
			now:  time.Date(2026, 3, 4, 12, 0, 0, 0, addis(t)),
			want: "DTSTART;TZID=Africa/Addis_Ababa:20260309T013000",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			subs := []*domain.Subscription{{UserID: 9, Category: domain.CategorySports, Frequency: domain.FrequencyWeekly}}
			data, err := Export(subs, tc.at, tc.loc, tc.now)
			require.NoError(t, err)
			assert.Contains(t, string(data), tc.want)

			cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
			require.NoError(t, err)
			events := cal.Events()
			require.Len(t, events, 1)

			start, err := events[0].DateTimeStart(time.UTC)
			require.NoError(t, err)
			rule, err := events[0].Props.RecurrenceRule()
			require.NoError(t, err)
			require.NotNil(t, rule)
			assert.Equal(t, []rrule.Weekday{rrule.MO}, rule.Byweekday)

			rule.Dtstart = start
			rule.Count = 3
			r, err := rrule.NewRRule(*rule)
			require.NoError(t, err)
			occurrences := r.All()
			require.Len(t, occurrences, 3)
			for _, occ := range occurrences {
				local := occ.In(tc.loc)
				assert.Equal(t, time.Monday, local.Weekday(), occ.String())
				assert.Equal(t, tc.at.Hour, local.Hour(), occ.String())
				assert.Equal(t, tc.at.Minute, local.Minute(), occ.String())
			}

			expected, err := Upcoming(domain.FrequencyWeekly, tc.at, tc.loc, tc.now, 3)
			require.NoError(t, err)
			for i := range expected {
				assert.True(t, expected[i].Equal(occurrences[i]), "%v != %v", expected[i], occurrences[i])
			}
		})
	}
}
