// Package clock supplies "now" and "today" in the application timezone.
// Every streak and bonus boundary is computed through a Clock so that a
// request sees one consistent calendar day.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the runtime clock and converts it into a fixed location.
type System struct {
	Location *time.Location
}

// NewSystem builds a System clock for the named IANA timezone.
// An empty name means UTC.
func NewSystem(timezone string) (System, error) {
	if timezone == "" {
		return System{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return System{}, err
	}
	return System{Location: loc}, nil
}

func (s System) Now() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Today returns the calendar day of c.Now() in the clock's own location.
func Today(c Clock) Date {
	return DateOf(c.Now())
}
