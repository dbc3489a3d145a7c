package quota

import "time"

// Calendar decides day boundaries for the daily counters. Days are calendar
// days in Location, not rolling 24h windows.
type Calendar struct {
	Location *time.Location
	Clock    func() time.Time
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Location: loc, Clock: time.Now}
}

func (c Calendar) Now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// SameDay compares the year, month and day of a and b in the calendar's location.
func (c Calendar) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(c.Location).Date()
	by, bm, bd := b.In(c.Location).Date()
	return ay == by && am == bm && ad == bd
}

// DayBounds returns the start of t's day and the start of the next one.
func (c Calendar) DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(c.Location).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, c.Location)
	return start, start.AddDate(0, 0, 1)
}
