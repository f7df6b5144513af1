package temporal

import (
	"time"

	perr "chime/internal/platform/errors"
)

// LoadZone resolves an IANA zone name against the host tzdata
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "unknown timezone %q", name)
	}
	return loc, nil
}

// Materialize turns a wall clock on a calendar date in loc into a UTC instant.
//
// DST transitions make some wall times ambiguous or nonexistent:
//   - a spring-forward gap shifts the alarm forward by the gap size, so a
//     02:30 alarm across a 02:00->03:00 jump fires at 03:30 local
//   - a fall-back overlap resolves to the earlier of the two instants
func Materialize(year int, month time.Month, day int, c Clock, loc *time.Location) time.Time {
	naive := time.Date(year, month, day, c.Hour, c.Minute, c.Second, 0, time.UTC)

	// Sample the zone offset around the target so both sides of any
	// transition produce a candidate instant
	offs := offsetsAround(naive, loc)

	var valid []time.Time
	var all []time.Time
	for _, off := range offs {
		cand := naive.Add(-time.Duration(off) * time.Second)
		all = append(all, cand)
		if wallEquals(cand, loc, year, month, day, c) {
			valid = append(valid, cand)
		}
	}

	switch len(valid) {
	case 0:
		// gap: the wall time never happens on this date; the latest
		// candidate is the requested time pushed past the jump
		return latest(all)
	case 1:
		return valid[0].UTC()
	default:
		return earliest(valid)
	}
}

// NextInstant returns the first instant strictly after `after` at which
// clock c occurs in loc on a day allowed by days
func NextInstant(after time.Time, c Clock, days WeekdaySet, loc *time.Location) time.Time {
	local := after.In(loc)
	y, m, d := local.Date()
	for i := 0; i < 8; i++ {
		date := time.Date(y, m, d+i, 12, 0, 0, 0, loc)
		if !days.Contains(date.Weekday()) {
			continue
		}
		inst := Materialize(date.Year(), date.Month(), date.Day(), c, loc)
		if inst.After(after) {
			return inst
		}
	}
	// a non-empty weekday cycle always matches within 8 days
	return time.Time{}
}

// LocalClock returns the wall clock observed in loc at instant t.
// It is the inverse of Materialize outside DST gaps
func LocalClock(t time.Time, loc *time.Location) Clock {
	hh, mm, ss := t.In(loc).Clock()
	return Clock{Hour: hh, Minute: mm, Second: ss}
}

// FirstInstant returns the first instant at or after `from` for clock c
// in loc on a day allowed by days. Today qualifies when the clock has
// not yet passed
func FirstInstant(from time.Time, c Clock, days WeekdaySet, loc *time.Location) time.Time {
	return NextInstant(from.Add(-time.Second), c, days, loc)
}

// WeekdayInZone returns t's weekday as observed in loc
func WeekdayInZone(t time.Time, loc *time.Location) time.Weekday {
	return t.In(loc).Weekday()
}

// LocalDate formats t's calendar date in loc as YYYY-MM-DD.
// Used as the occurrence key for dedup and claims
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func offsetsAround(naive time.Time, loc *time.Location) []int {
	probes := []time.Time{
		naive.Add(-24 * time.Hour),
		naive,
		naive.Add(24 * time.Hour),
	}
	var offs []int
	for _, p := range probes {
		_, off := p.In(loc).Zone()
		dup := false
		for _, seen := range offs {
			if seen == off {
				dup = true
				break
			}
		}
		if !dup {
			offs = append(offs, off)
		}
	}
	return offs
}

func wallEquals(inst time.Time, loc *time.Location, year int, month time.Month, day int, c Clock) bool {
	l := inst.In(loc)
	y, m, d := l.Date()
	hh, mm, ss := l.Clock()
	return y == year && m == month && d == day &&
		hh == c.Hour && mm == c.Minute && ss == c.Second
}

func earliest(ts []time.Time) time.Time {
	min := ts[0]
	for _, t := range ts[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min.UTC()
}

func latest(ts []time.Time) time.Time {
	max := ts[0]
	for _, t := range ts[1:] {
		if t.After(max) {
			max = t
		}
	}
	return max.UTC()
}
