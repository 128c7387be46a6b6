// Package calendar fetches the next upcoming events from Google Calendar.
//
// A Fetcher issues a single events.list query for events starting from now,
// expanded into single instances and ordered by start time, and maps the
// result to minimal Event records. Provider errors never reach the caller:
// they are logged and counted, and an empty EventList is returned.
//
// Example usage:
//
//	f := calendar.NewFetcher(calendar.WithCalendarID("primary"))
//	events := f.FetchUpcoming(ctx, cred.Token())
//	for _, e := range events {
//	    fmt.Println(e.Start, e.Summary)
//	}
package calendar
