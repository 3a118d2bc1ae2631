package workflow

import (
	"strconv"
	"time"
)

// unitMillis maps delay units to milliseconds.
var unitMillis = map[string]int64{
	"s": 1000,
	"m": 60 * 1000,
	"h": 60 * 60 * 1000,
	"d": 24 * 60 * 60 * 1000,
	"w": 7 * 24 * 60 * 60 * 1000,
}

// DelayMillis converts an edge delay to milliseconds. Absent, malformed, or
// unknown-unit delays resolve to 0 so a bad edge schedules immediately
// instead of stalling the lead.
func DelayMillis(d *DelayData) int64 {
	if d == nil {
		return 0
	}
	amount, err := strconv.ParseInt(d.Delay, 10, 64)
	if err != nil || amount < 0 {
		return 0
	}
	unit, ok := unitMillis[d.Unit]
	if !ok {
		return 0
	}
	return amount * unit
}

// DayChanged reports whether a local calendar day boundary lies between
// last and now.
func DayChanged(last, now time.Time) bool {
	ly, lm, ld := last.Local().Date()
	ny, nm, nd := now.Local().Date()
	if ny != ly {
		return ny > ly
	}
	if nm != lm {
		return nm > lm
	}
	return nd > ld
}

// WeekChanged reports whether an ISO week boundary (Monday-starting, in UTC)
// lies between last and now. ISO week numbering follows the Thursday rule,
// which time.ISOWeek implements.
func WeekChanged(last, now time.Time) bool {
	ly, lw := last.UTC().ISOWeek()
	ny, nw := now.UTC().ISOWeek()
	if ny != ly {
		return ny > ly
	}
	return nw > lw
}

// NextDayReset returns the next local midnight after now.
func NextDayReset(now time.Time) time.Time {
	local := now.Local()
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location()).AddDate(0, 0, 1)
}

// NextWeekReset returns the next Monday 00:00 local after now.
func NextWeekReset(now time.Time) time.Time {
	day := NextDayReset(now)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
