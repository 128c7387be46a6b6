package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// dateLayout is the layout of all-day event dates.
const dateLayout = "2006-01-02"

// Event is an upcoming calendar event. Start is an RFC3339 timestamp for
// timed events or a YYYY-MM-DD date for all-day events.
type Event struct {
	Start   string `json:"start"`
	Summary string `json:"summary"`
}

// AllDay reports whether the event is an all-day event.
func (e Event) AllDay() bool {
	_, err := time.Parse(dateLayout, e.Start)
	return err == nil
}

// StartTime parses Start. All-day dates resolve to midnight UTC.
func (e Event) StartTime() (time.Time, error) {
	return e.StartTimeIn(time.UTC)
}

// StartTimeIn parses Start, resolving all-day dates to midnight in loc.
func (e Event) StartTimeIn(loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, e.Start); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, e.Start, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized event start %q", e.Start)
}

// EventList is an ordered list of upcoming events. It always encodes as a
// JSON array, never null.
type EventList []Event

// MarshalJSON implements json.Marshaler.
func (l EventList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Event(l))
}

// toEvent maps a provider event, preferring start.dateTime and falling back
// to start.date. Items without any start are reported as not ok.
func toEvent(item *calendar.Event) (Event, bool) {
	if item == nil || item.Start == nil {
		return Event{}, false
	}

	start := item.Start.DateTime
	if start == "" {
		start = item.Start.Date
	}
	if start == "" {
		return Event{}, false
	}

	return Event{Start: start, Summary: item.Summary}, true
}
