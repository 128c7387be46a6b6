package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"
	_ "time/tzdata"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/nextup/internal/instrumentation"
	"github.com/teemow/nextup/internal/logging"
)

const (
	// DefaultCalendarID is the authenticated user's primary calendar.
	DefaultCalendarID = "primary"

	// PageSize is the fixed number of events requested and returned.
	PageSize = 10
)

// Fetcher lists upcoming events of one calendar.
type Fetcher struct {
	calendarID    string
	clientOptions []option.ClientOption

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCalendarID sets the calendar to read (default "primary").
func WithCalendarID(id string) FetcherOption {
	return func(f *Fetcher) {
		if id != "" {
			f.calendarID = id
		}
	}
}

// WithClientOptions appends options passed to the Calendar service, such as
// option.WithEndpoint.
func WithClientOptions(opts ...option.ClientOption) FetcherOption {
	return func(f *Fetcher) { f.clientOptions = append(f.clientOptions, opts...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = metrics }
}

// WithClock overrides the time source used as the query start.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		calendarID: DefaultCalendarID,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.WithService(f.logger, instrumentation.ServiceCalendar)
	return f
}

// CalendarID returns the calendar being read.
func (f *Fetcher) CalendarID() string {
	return f.calendarID
}

// FetchUpcoming returns at most PageSize events starting at or after now,
// in the provider's start-time order. Any provider failure yields an empty
// list.
func (f *Fetcher) FetchUpcoming(ctx context.Context, tok *oauth2.Token) EventList {
	now := f.now().UTC()
	start := time.Now()

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList,
		attribute.String(instrumentation.SpanAttrCalendar, f.calendarID))
	defer span.End()

	resp, err := f.list(ctx, tok, now)
	f.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList,
		statusOf(err), time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		f.logProviderError(err)
		return EventList{}
	}

	events := f.upcoming(resp.Items, f.location(resp.TimeZone), now)
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrEventCount, len(events)))
	instrumentation.SetSpanSuccess(span)
	f.metrics.RecordEventsReturned(ctx, len(events))

	f.logger.Debug("fetched upcoming events",
		logging.Calendar(f.calendarID),
		"count", len(events),
		logging.Status(logging.StatusSuccess),
	)

	return events
}

func (f *Fetcher) list(ctx context.Context, tok *oauth2.Token, now time.Time) (*calendar.Events, error) {
	if tok == nil {
		return nil, errors.New("no token to authorize the request")
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, f.clientOptions...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List(f.calendarID).
		TimeMin(now.Format(time.RFC3339)).
		MaxResults(PageSize).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// upcoming maps items in provider order, dropping events that start before
// now and capping the result at PageSize. All-day dates are compared in loc,
// the calendar's time zone.
func (f *Fetcher) upcoming(items []*calendar.Event, loc *time.Location, now time.Time) EventList {
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	events := make(EventList, 0, min(len(items), PageSize))
	for _, item := range items {
		if len(events) == PageSize {
			break
		}

		ev, ok := toEvent(item)
		if !ok {
			continue
		}

		t, err := ev.StartTimeIn(loc)
		if err != nil {
			f.logger.Warn("skipping event with unparseable start", logging.Err(err))
			continue
		}

		cutoff := now
		if ev.AllDay() {
			cutoff = today
		}
		if t.Before(cutoff) {
			continue
		}

		events = append(events, ev)
	}
	return events
}

// location resolves the calendar time zone reported by events.list. An
// empty or unknown zone falls back to UTC.
func (f *Fetcher) location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		f.logger.Warn("unknown calendar time zone, using UTC", "time_zone", name, logging.Err(err))
		return time.UTC
	}
	return loc
}

func (f *Fetcher) logProviderError(err error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		f.logger.Error("calendar request failed, returning no events",
			logging.Calendar(f.calendarID),
			"code", apiErr.Code,
			logging.Err(err),
		)
		return
	}
	f.logger.Error("calendar request failed, returning no events",
		logging.Calendar(f.calendarID),
		logging.Err(err),
	)
}

func statusOf(err error) string {
	if err != nil {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
