package clock

import "time"

// Clock supplies "today" in the reporting calendar. The lifecycle
// machine never reads the wall clock directly so that window decisions
// stay deterministic under test.
type Clock interface {
	Today() time.Time
}

// Location-aware system clock.
type systemClock struct {
	loc *time.Location
}

// NewSystem creates a clock that reports local dates in the named
// timezone. An unknown name falls back to UTC.
func NewSystem(timezone string) Clock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &systemClock{loc: loc}
}

// Today returns the current date truncated to midnight in the clock's
// location.
func (c *systemClock) Today() time.Time {
	now := time.Now().In(c.loc)
	return DateOf(now)
}

// fixedClock always reports the same date; used by tests and by
// request paths that must evaluate every rule against one instant.
type fixedClock struct {
	today time.Time
}

// NewFixed creates a clock pinned to the given date
func NewFixed(today time.Time) Clock {
	return &fixedClock{today: DateOf(today)}
}

func (c *fixedClock) Today() time.Time {
	return c.today
}

// DateOf strips the time-of-day component, keeping the location
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FirstOfMonth normalizes a date to its reporting period: the first
// day of the calendar month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
