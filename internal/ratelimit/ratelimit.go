// Package ratelimit decides whether a campaign may send another connection
// request right now. It is pure: Check reads campaign counters and returns a
// decision plus the counter-reset patch that must be persisted, leaving all
// writes to the caller so resets and increments land in a single update.
package ratelimit

import (
	"os"
	"strconv"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/workflow"
)

// Default limits; overridable via DAILY_LIMIT / WEEKLY_LIMIT.
const (
	DefaultDailyLimit  = 60
	DefaultWeeklyLimit = 200
)

// Limits caps connection requests per campaign.
type Limits struct {
	Daily  int
	Weekly int
}

// LimitsFromEnv reads DAILY_LIMIT and WEEKLY_LIMIT, falling back to the
// defaults on absent or unparsable values.
func LimitsFromEnv() Limits {
	return Limits{
		Daily:  envInt("DAILY_LIMIT", DefaultDailyLimit),
		Weekly: envInt("WEEKLY_LIMIT", DefaultWeeklyLimit),
	}
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// CounterPatch is the set of campaign counter columns to update. Nil fields
// are left untouched. A patch produced by Check carries any boundary resets;
// the executor merges its increment into the same patch before persisting so
// a reset can never be lost to a second write.
type CounterPatch struct {
	RequestsSentThisDay     *int
	RequestsSentThisWeek    *int
	LastDailyRequestsReset  *time.Time
	LastWeeklyRequestsReset *time.Time
}

// Empty reports whether the patch changes nothing.
func (p CounterPatch) Empty() bool {
	return p.RequestsSentThisDay == nil && p.RequestsSentThisWeek == nil &&
		p.LastDailyRequestsReset == nil && p.LastWeeklyRequestsReset == nil
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	CanProceed bool
	// WaitUntil is how long the step must be deferred when CanProceed is
	// false: the later of the applicable daily / weekly reset boundaries.
	WaitUntil time.Duration
	// Effective counter values after applying any boundary reset.
	RequestsSentThisDay  int
	RequestsSentThisWeek int
	// Patch holds the boundary resets detected by this check. It must be
	// persisted even when the step is deferred.
	Patch CounterPatch
}

// Check evaluates the campaign's counters against the limits at the given
// time. Boundary detection: the daily counter resets when the local calendar
// date has advanced past the last recorded reset (or none is recorded); the
// weekly counter resets on ISO-week advance in UTC.
func Check(c *domain.Campaign, limits Limits, now time.Time) Decision {
	d := Decision{
		RequestsSentThisDay:  c.RequestsSentThisDay,
		RequestsSentThisWeek: c.RequestsSentThisWeek,
	}

	if c.LastDailyRequestsReset == nil || workflow.DayChanged(*c.LastDailyRequestsReset, now) {
		zero := 0
		ts := now
		d.RequestsSentThisDay = 0
		d.Patch.RequestsSentThisDay = &zero
		d.Patch.LastDailyRequestsReset = &ts
	}
	if c.LastWeeklyRequestsReset == nil || workflow.WeekChanged(*c.LastWeeklyRequestsReset, now) {
		zero := 0
		ts := now
		d.RequestsSentThisWeek = 0
		d.Patch.RequestsSentThisWeek = &zero
		d.Patch.LastWeeklyRequestsReset = &ts
	}

	dailyExceeded := d.RequestsSentThisDay >= limits.Daily
	weeklyExceeded := d.RequestsSentThisWeek >= limits.Weekly
	if !dailyExceeded && !weeklyExceeded {
		d.CanProceed = true
		return d
	}

	var until time.Time
	if dailyExceeded {
		until = workflow.NextDayReset(now)
	}
	if weeklyExceeded {
		if wr := workflow.NextWeekReset(now); wr.After(until) {
			until = wr
		}
	}
	d.WaitUntil = until.Sub(now)
	return d
}

// Increment returns the decision's patch with both counters advanced by one,
// preserving any reset timestamps already in the patch. Call only after the
// provider accepted the invitation.
func (d Decision) Increment() CounterPatch {
	p := d.Patch
	day := d.RequestsSentThisDay + 1
	week := d.RequestsSentThisWeek + 1
	p.RequestsSentThisDay = &day
	p.RequestsSentThisWeek = &week
	return p
}
