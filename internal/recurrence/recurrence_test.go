package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Wednesday 2026-01-07 14:00 UTC.
var anchor = time.Date(2026, 1, 7, 14, 0, 0, 0, time.UTC)

func weeklyPattern() Pattern {
	return Pattern{Freq: FreqWeekly, Weekday: time.Wednesday, Hour: 14, Minute: 0}
}

func TestNext_Weekly_SecondWeek(t *testing.T) {
	seriesEnd := anchor.AddDate(0, 0, 21)
	// Start of week 2: the Monday after the first occurrence.
	now := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

	next := Next(anchor, weeklyPattern(), seriesEnd, now)
	assert.Equal(t, time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC), next)
}

func TestNext_Weekly_SameDayBeforeAndAfterTime(t *testing.T) {
	seriesEnd := anchor.AddDate(0, 0, 28)

	morning := time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC),
		Next(anchor, weeklyPattern(), seriesEnd, morning))

	evening := time.Date(2026, 1, 14, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 21, 14, 0, 0, 0, time.UTC),
		Next(anchor, weeklyPattern(), seriesEnd, evening))
}

func TestNext_PastSeriesEnd_ReturnsOriginal(t *testing.T) {
	seriesEnd := anchor.AddDate(0, 0, 21)

	after := seriesEnd.AddDate(0, 0, 1)
	assert.Equal(t, anchor, Next(anchor, weeklyPattern(), seriesEnd, after))

	// Computed occurrence past the end is also the sentinel.
	lastDay := seriesEnd.Add(-time.Hour)
	got := Next(anchor, Pattern{Freq: FreqWeekly, Weekday: time.Friday, Hour: 20}, seriesEnd, lastDay)
	assert.Equal(t, anchor, got)
}

func TestNext_BiWeekly_CadenceNeverDrifts(t *testing.T) {
	p := Pattern{Freq: FreqBiWeekly, Weekday: time.Wednesday, Hour: 14, Minute: 0}
	seriesEnd := anchor.AddDate(0, 6, 0)

	// Advance now one week at a time; returned occurrences must stay on
	// the anchor's two-week grid, never on consecutive weeks.
	now := anchor.AddDate(0, 0, 1)
	var prev time.Time
	for i := 0; i < 6; i++ {
		next := Next(anchor, p, seriesEnd, now)
		assert.Equal(t, time.Wednesday, next.Weekday())

		weeksFromAnchor := int(next.Sub(anchor).Hours()) / (24 * 7)
		assert.Zero(t, weeksFromAnchor%2, "occurrence off the bi-weekly grid")

		if !prev.IsZero() && !next.Equal(prev) {
			assert.Equal(t, float64(14*24), next.Sub(prev).Hours())
		}
		prev = next
		now = now.AddDate(0, 0, 7)
	}
}

func TestNext_Monthly_Rollover(t *testing.T) {
	p := Pattern{Freq: FreqMonthly, DayOfMonth: 5, Hour: 10}
	original := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	seriesEnd := original.AddDate(1, 0, 0)

	// Target day already passed this month: roll to next month.
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC),
		Next(original, p, seriesEnd, now))

	// December rollover carries the year.
	now = time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 1, 5, 10, 0, 0, 0, time.UTC),
		Next(original, p, seriesEnd, now))
}

func TestNext_Monthly_SkipsShortMonths(t *testing.T) {
	p := Pattern{Freq: FreqMonthly, DayOfMonth: 31, Hour: 18}
	original := time.Date(2026, 1, 31, 18, 0, 0, 0, time.UTC)
	seriesEnd := original.AddDate(1, 0, 0)

	// February through April 2026 lack a 31st except March.
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC),
		Next(original, p, seriesEnd, now))

	now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 31, 18, 0, 0, 0, time.UTC),
		Next(original, p, seriesEnd, now))
}

func TestNext_UnknownFreq_ReturnsOriginal(t *testing.T) {
	got := Next(anchor, Pattern{Freq: "daily"}, anchor.AddDate(1, 0, 0), anchor)
	assert.Equal(t, anchor, got)
}
