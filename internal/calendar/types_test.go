package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name   string
		item   *calendar.Event
		want   Event
		wantOK bool
	}{
		{
			name:   "nil item",
			item:   nil,
			wantOK: false,
		},
		{
			name:   "no start",
			item:   &calendar.Event{Summary: "x"},
			wantOK: false,
		},
		{
			name:   "empty start",
			item:   &calendar.Event{Summary: "x", Start: &calendar.EventDateTime{}},
			wantOK: false,
		},
		{
			name:   "timed",
			item:   &calendar.Event{Summary: "Standup", Start: &calendar.EventDateTime{DateTime: "2024-01-01T10:00:00Z"}},
			want:   Event{Start: "2024-01-01T10:00:00Z", Summary: "Standup"},
			wantOK: true,
		},
		{
			name:   "all day",
			item:   &calendar.Event{Summary: "Holiday", Start: &calendar.EventDateTime{Date: "2024-01-02"}},
			want:   Event{Start: "2024-01-02", Summary: "Holiday"},
			wantOK: true,
		},
		{
			name: "dateTime wins over date",
			item: &calendar.Event{Summary: "Both", Start: &calendar.EventDateTime{
				DateTime: "2024-01-01T10:00:00Z",
				Date:     "2024-01-01",
			}},
			want:   Event{Start: "2024-01-01T10:00:00Z", Summary: "Both"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toEvent(tt.item)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_StartTime(t *testing.T) {
	start, err := Event{Start: "2024-01-01T12:00:00+02:00"}.StartTime()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))

	start, err = Event{Start: "2024-01-02"}.StartTime()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	_, err = Event{Start: "soon"}.StartTime()
	assert.Error(t, err)
}

func TestEvent_StartTimeIn(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	start, err := Event{Start: "2024-01-02"}.StartTimeIn(tokyo)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)))

	start, err = Event{Start: "2024-01-02T05:00:00+09:00"}.StartTimeIn(tokyo)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)))
}

func TestEvent_AllDay(t *testing.T) {
	assert.True(t, Event{Start: "2024-01-02"}.AllDay())
	assert.False(t, Event{Start: "2024-01-02T10:00:00Z"}.AllDay())
}

func TestEventList_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		list EventList
		want string
	}{
		{"nil", nil, `[]`},
		{"empty", EventList{}, `[]`},
		{"one", EventList{{Start: "2024-01-02", Summary: ""}}, `[{"start":"2024-01-02","summary":""}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.list)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}
