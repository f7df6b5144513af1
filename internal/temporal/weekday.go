package temporal

import (
	"strings"
	"time"

	perr "chime/internal/platform/errors"
)

// WeekdaySet is a bitmask of weekdays, bit 0 = Sunday to match time.Weekday.
// The zero set means "no restriction": every day qualifies
type WeekdaySet uint8

var dayAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// canonical Mon-first ordering for String
var dayOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ParseWeekdays parses a comma-separated day list like "Mon,Wed,Fri".
// An empty string yields the zero (unrestricted) set
func ParseWeekdays(s string) (WeekdaySet, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		found := false
		for wd, ab := range dayAbbrev {
			if name == ab {
				set |= 1 << uint(wd)
				found = true
				break
			}
		}
		if !found {
			return 0, perr.InvalidArgf("bad weekday %q", name)
		}
	}
	return set, nil
}

// MustWeekdays panics on a bad literal; for tests and constants
func MustWeekdays(s string) WeekdaySet {
	set, err := ParseWeekdays(s)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether wd is in the set; the zero set contains every day
func (s WeekdaySet) Contains(wd time.Weekday) bool {
	if s == 0 {
		return true
	}
	return s&(1<<uint(wd)) != 0
}

// Empty reports whether the set is unrestricted
func (s WeekdaySet) Empty() bool { return s == 0 }

// String renders the canonical Mon-first comma list; empty for the zero set
func (s WeekdaySet) String() string {
	if s == 0 {
		return ""
	}
	parts := make([]string, 0, 7)
	for _, wd := range dayOrder {
		if s&(1<<uint(wd)) != 0 {
			parts = append(parts, dayAbbrev[wd])
		}
	}
	return strings.Join(parts, ",")
}
