package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy holds the attendance rules.
type Policy struct {
	Location          *time.Location
	DayStart          time.Duration // offset from local midnight
	Grace             time.Duration // tolerated delay before a check-in is late
	StandardDay       time.Duration // worked time beyond this is overtime
	WindowDays        int
	AbsencePenalty    time.Duration // charged per unexcused missing day
	SanctionThreshold time.Duration
	SkipWeekends      bool
}

func DefaultPolicy() Policy {
	return Policy{
		Location:          time.UTC,
		DayStart:          8 * time.Hour,
		StandardDay:       8 * time.Hour,
		WindowDays:        7,
		AbsencePenalty:    60 * time.Minute,
		SanctionThreshold: 60 * time.Minute,
	}
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// clockOf is the offset of t from its local midnight.
func (p Policy) clockOf(t time.Time) time.Duration {
	local := t.In(p.location())
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}

// classify returns the status and lateness of a check-in at clock offset c.
// Lateness is measured from DayStart even when a grace period applies.
func (p Policy) classify(c time.Duration) (Status, time.Duration) {
	if c > p.DayStart+p.Grace {
		return StatusLate, c - p.DayStart
	}
	return StatusPresent, 0
}

// worked returns check-out minus check-in on the clock, adding a day when
// the check-out clock reads earlier than the check-in clock.
func (p Policy) worked(in, out time.Duration) time.Duration {
	if out < in {
		out += 24 * time.Hour
	}
	return out - in
}

func (p Policy) overtime(worked time.Duration) time.Duration {
	if worked > p.StandardDay {
		return worked - p.StandardDay
	}
	return 0
}
