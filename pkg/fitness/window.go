package fitness

import "time"

// DateLayout is the calendar-date format used at every API boundary
const DateLayout = "2006-01-02"

var (
	// FarPast and FarFuture bound the all-time window. Both are valid
	// PostgreSQL dates so unbounded reports use the same query path.
	FarPast   = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	FarFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Window is a half-open time range [Start, End). Report windows always
// start and end on midnight UTC so date-keyed and timestamp-keyed sources
// agree on which events fall inside.
type Window struct {
	Start time.Time
	End   time.Time
}

// AllTime returns the sentinel window that covers every stored event
func AllTime() Window {
	return Window{Start: FarPast, End: FarFuture}
}

// DayWindow returns the window covering the calendar days first..last inclusive
func DayWindow(first, last time.Time) Window {
	return Window{Start: StartOfDay(first), End: StartOfDay(last).AddDate(0, 0, 1)}
}

// EmptyWindow returns a window of zero length at the start of day's date.
// It contains no instant.
func EmptyWindow(day time.Time) Window {
	s := StartOfDay(day)
	return Window{Start: s, End: s}
}

// IsEmpty reports whether no instant falls inside w
func (w Window) IsEmpty() bool {
	return !w.End.After(w.Start)
}

// IsAllTime reports whether w is the all-time sentinel window
func (w Window) IsAllTime() bool {
	return !w.Start.After(FarPast) && !w.End.Before(FarFuture)
}

// Duration returns the length of the window
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the window of identical length that ends where w starts
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ContainsDay reports whether the calendar day of d falls inside the window
func (w Window) ContainsDay(d time.Time) bool {
	return w.Contains(StartOfDay(d))
}

// FirstDay returns the first calendar day of the window
func (w Window) FirstDay() time.Time {
	return StartOfDay(w.Start)
}

// LastDay returns the last calendar day of the window
func (w Window) LastDay() time.Time {
	return StartOfDay(w.End.Add(-time.Nanosecond))
}

// StartOfDay truncates t to midnight UTC of its calendar date
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns midnight UTC of the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns midnight UTC of the last day of t's month
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}
