// Package timeline turns ordered room messages into what a chat window
// renders: date separators, same-sender batches and short timestamps.
// Nothing here reads the clock or global state; callers pass "now" and
// the location explicitly.
package timeline

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

const (
	dateLabelLayout = "January 2, 2006"
	clockLayout     = "15:04"
	dateLayout      = "02/01/2006"
)

// Entry is a message as seen by one viewer.
type Entry interface {
	Time() time.Time
	FromViewer() bool
	// Key breaks ties between entries sharing a timestamp.
	Key() string
}

// Item is either a date label or a non-empty batch of entries.
type Item[M Entry] struct {
	Label string
	Batch []M
}

// IsLabel reports whether the item is a date separator.
func (it Item[M]) IsLabel() bool { return it.Batch == nil }

// MarshalJSON encodes a label as a string and a batch as an array.
func (it Item[M]) MarshalJSON() ([]byte, error) {
	if it.IsLabel() {
		return json.Marshal(it.Label)
	}
	return json.Marshal(it.Batch)
}

type day struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day{y, m, d}
}

func compareEntries[M Entry](a, b M) int {
	if c := a.Time().Compare(b.Time()); c != 0 {
		return c
	}
	return strings.Compare(a.Key(), b.Key())
}

// Group orders msgs oldest first and splits them into batches of
// consecutive entries sharing a calendar day (in loc) and a sender side.
// A label precedes every batch that starts a new day. The input slice is
// not modified.
func Group[M Entry](msgs []M, loc *time.Location) []Item[M] {
	if loc == nil {
		loc = time.Local
	}
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, compareEntries[M])

	var (
		items   []Item[M]
		batch   []M
		curDay  day
		curMine bool
	)
	for _, m := range sorted {
		d := dayOf(m.Time(), loc)
		if len(batch) > 0 && d == curDay && m.FromViewer() == curMine {
			batch = append(batch, m)
			continue
		}
		if len(batch) > 0 {
			items = append(items, Item[M]{Batch: batch})
		}
		if len(batch) == 0 || d != curDay {
			items = append(items, Item[M]{Label: DateLabel(m.Time(), loc)})
		}
		batch = []M{m}
		curDay, curMine = d, m.FromViewer()
	}
	if len(batch) > 0 {
		items = append(items, Item[M]{Batch: batch})
	}
	return items
}

// Flatten returns the entries of items in display order.
func Flatten[M Entry](items []Item[M]) []M {
	var out []M
	for _, it := range items {
		out = append(out, it.Batch...)
	}
	return out
}

// DateLabel renders t as "January 5, 2024".
func DateLabel(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLabelLayout)
}

// Clock renders t as zero-padded 24-hour "HH:MM".
func Clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(clockLayout)
}

// RelativeTimestamp renders t relative to now: "HH:MM" on the same
// calendar day, "Yesterday", the weekday name within the last week and
// "DD/MM/YYYY" otherwise.
func RelativeTimestamp(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	switch diff := calendarDaysBetween(t, now, loc); {
	case diff == 0:
		return Clock(t, loc)
	case diff == 1:
		return "Yesterday"
	case diff > 1 && diff < 7:
		return t.In(loc).Weekday().String()
	default:
		return t.In(loc).Format(dateLayout)
	}
}

// calendarDaysBetween counts midnights crossed from a to b in loc.
func calendarDaysBetween(a, b time.Time, loc *time.Location) int {
	da, db := dayOf(a, loc), dayOf(b, loc)
	ua := time.Date(da.year, da.month, da.day, 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.year, db.month, db.day, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

// Formatter binds a location and clock for callers that format many
// values against the same "now".
type Formatter struct {
	Location *time.Location
	Now      func() time.Time
}

// NewFormatter returns a Formatter using the wall clock.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{Location: loc, Now: time.Now}
}

func (f *Formatter) Relative(t time.Time) string {
	return RelativeTimestamp(t, f.Now(), f.Location)
}

func (f *Formatter) Clock(t time.Time) string {
	return Clock(t, f.Location)
}
