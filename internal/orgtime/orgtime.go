// Package orgtime provides org-timezone calendar helpers. All "today" and
// "tomorrow" semantics evaluate in the organization's configured timezone,
// never the server's local date, to avoid off-by-one errors near midnight UTC.
package orgtime

import (
	"time"

	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// WindowDays is the forward scheduling window: a date is schedulable when it
// falls in [today, today+WindowDays].
const WindowDays = 30

// UrgencyCutoff marks requests whose slot starts within this horizon.
const UrgencyCutoff = 48 * time.Hour

// Clock evaluates calendar questions in the org timezone. The zero value is
// unusable; build one with New. Tests inject a fixed now func.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock for the given timezone name (e.g. "America/Toronto").
func New(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Clock{}, err
	}
	return Clock{loc: loc, now: time.Now}, nil
}

// NewFixed returns a Clock pinned to a constant instant, for tests.
func NewFixed(timezone string, at time.Time) (Clock, error) {
	c, err := New(timezone)
	if err != nil {
		return Clock{}, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Now returns the current instant in the org timezone.
func (c Clock) Now() time.Time { return c.now().In(c.loc) }

// Today returns the current calendar date in the org timezone.
func (c Clock) Today() domain.Date { return domain.DateOf(c.Now()) }

// Tomorrow returns today + 1 day in the org timezone.
func (c Clock) Tomorrow() domain.Date { return c.Today().AddDays(1) }

// InWindow reports whether d falls within [today, today+WindowDays].
func (c Clock) InWindow(d domain.Date) bool {
	today := c.Today()
	return !d.Before(today) && !d.After(today.AddDays(WindowDays))
}

// ClampToWindow discards out-of-window dates: it returns d unchanged when d
// is in the window and nil otherwise. Out-of-window dates are never rejected
// outright; downstream stages re-derive or prompt for them.
func (c Clock) ClampToWindow(d *domain.Date) *domain.Date {
	if d == nil || !c.InWindow(*d) {
		return nil
	}
	return d
}

// Urgent reports whether a slot on date d starts within the urgency cutoff.
// Slot start is taken as midnight of d in the org timezone; used only for
// UI sort priority.
func (c Clock) Urgent(d domain.Date) bool {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	return !start.After(c.Now().Add(UrgencyCutoff))
}
