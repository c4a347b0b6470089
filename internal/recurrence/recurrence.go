// Copyright 2026 The HomeGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package recurrence computes the next occurrence of repeating community
// events. Next is pure: same inputs, same output, no clock access.
package recurrence

import (
	"math"
	"time"
)

// Freq selects the recurrence rule family.
type Freq string

const (
	FreqWeekly   Freq = "weekly"
	FreqBiWeekly Freq = "bi-weekly"
	FreqMonthly  Freq = "monthly"
)

// Pattern describes a recurrence rule. Weekday (0=Sunday..6=Saturday) is
// used by the weekly families, DayOfMonth by monthly. Hour and Minute set
// the time of day of every occurrence.
type Pattern struct {
	Freq       Freq
	Weekday    time.Weekday
	DayOfMonth int
	Hour       int
	Minute     int
}

// Next returns the next occurrence of the pattern strictly determined by
// now. When the computed occurrence would fall past seriesEnd, or
// seriesEnd has already passed, Next returns original unchanged as the
// no-further-occurrence sentinel; callers exclude that value from upcoming
// listings rather than display it.
func Next(original time.Time, p Pattern, seriesEnd, now time.Time) time.Time {
	if now.After(seriesEnd) {
		return original
	}

	var next time.Time
	switch p.Freq {
	case FreqWeekly:
		next = nextWeekly(p, now, 1, original)
	case FreqBiWeekly:
		next = nextWeekly(p, now, 2, original)
	case FreqMonthly:
		next = nextMonthly(p, now)
	default:
		return original
	}

	if next.After(seriesEnd) {
		return original
	}
	return next
}

// nextWeekly finds the next occurrence on the pattern weekday at/after
// now. Bi-weekly cadence anchors to the first occurrence on/after original
// and advances in whole two-week steps so the rhythm never drifts off the
// anchor, whatever now is.
func nextWeekly(p Pattern, now time.Time, interval int, original time.Time) time.Time {
	candidate := atTime(now, p.Hour, p.Minute)
	days := (int(p.Weekday) - int(candidate.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}

	if interval == 1 {
		return candidate
	}

	anchor := atTime(original, p.Hour, p.Minute)
	days = (int(p.Weekday) - int(anchor.Weekday()) + 7) % 7
	anchor = anchor.AddDate(0, 0, days)

	// Whole weeks between the anchor and the candidate decide phase.
	// Rounding absorbs the odd hour a DST transition adds or removes.
	weeks := int(math.Round(candidate.Sub(anchor).Hours() / (24 * 7)))
	if weeks%interval != 0 {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// nextMonthly tries the pattern day in now's month first, then walks
// forward month by month. Months without the target day (e.g. the 31st in
// April) are skipped.
func nextMonthly(p Pattern, now time.Time) time.Time {
	year, month := now.Year(), now.Month()
	for i := 0; i < 13; i++ {
		candidate := time.Date(year, month, p.DayOfMonth, p.Hour, p.Minute, 0, 0, now.Location())
		// Date normalizes overflow; a different resulting day means the
		// month lacks the target day.
		if candidate.Day() == p.DayOfMonth && !candidate.Before(now) {
			return candidate
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	// Unreachable for valid days 1..31; degenerate input.
	return now
}

func atTime(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}
