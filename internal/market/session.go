package market

import (
	"fmt"
	"time"
)

// Quote market-status values as published to consumers.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Session is an exchange trading window on weekdays, evaluated in the
// exchange's own timezone. The NSE cash session is 09:15-15:30 IST.
type Session struct {
	openMin  int // minutes since midnight, inclusive
	closeMin int // minutes since midnight, inclusive
	loc      *time.Location
}

// NewSession parses "HH:MM" bounds. loc nil means the system local zone.
func NewSession(open, close string, loc *time.Location) (Session, error) {
	o, err := parseClock(open)
	if err != nil {
		return Session{}, fmt.Errorf("parse session open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return Session{}, fmt.Errorf("parse session close: %w", err)
	}
	if c < o {
		return Session{}, fmt.Errorf("session close %s before open %s", close, open)
	}
	if loc == nil {
		loc = time.Local
	}
	return Session{openMin: o, closeMin: c, loc: loc}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen reports whether t falls inside the session window on a weekday.
// Both bounds are inclusive; weekends are always closed.
func (s Session) IsOpen(t time.Time) bool {
	t = t.In(s.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	min := t.Hour()*60 + t.Minute()
	return min >= s.openMin && min <= s.closeMin
}

// Status maps IsOpen onto the published market-status string.
func (s Session) Status(t time.Time) string {
	if s.IsOpen(t) {
		return StatusOpen
	}
	return StatusClosed
}

// Location exposes the session timezone for callers that log or format
// session-relative times.
func (s Session) Location() *time.Location { return s.loc }
