// Package temporal converts wall-clock alarm times between their home
// timezone and UTC, including across DST transitions
package temporal

import (
	"fmt"

	perr "chime/internal/platform/errors"
)

// Clock is a wall-clock time of day with second precision.
// It has no date and no zone; pairing it with both yields an instant
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock accepts "HH:MM" or "HH:MM:SS" with zero-padded fields
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 && len(s) != 8 {
		return Clock{}, perr.InvalidArgf("bad clock %q", s)
	}
	if s[2] != ':' || (len(s) == 8 && s[5] != ':') {
		return Clock{}, perr.InvalidArgf("bad clock %q", s)
	}

	field := func(i int) (int, bool) {
		a, b := s[i], s[i+1]
		if a < '0' || a > '9' || b < '0' || b > '9' {
			return 0, false
		}
		return int(a-'0')*10 + int(b-'0'), true
	}

	var c Clock
	var ok bool
	if c.Hour, ok = field(0); !ok || c.Hour > 23 {
		return Clock{}, perr.InvalidArgf("bad clock %q", s)
	}
	if c.Minute, ok = field(3); !ok || c.Minute > 59 {
		return Clock{}, perr.InvalidArgf("bad clock %q", s)
	}
	if len(s) == 8 {
		if c.Second, ok = field(6); !ok || c.Second > 59 {
			return Clock{}, perr.InvalidArgf("bad clock %q", s)
		}
	}
	return c, nil
}

// MustClock panics on a bad literal; for tests and constants
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the canonical "HH:MM:SS" form
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// SecondsFromMidnight returns the clock as seconds since 00:00:00
func (c Clock) SecondsFromMidnight() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}
