package calendar

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventOps 记录事件操作调用。
type fakeEventOps struct {
	events     []string
	lastSearch EventSearchArgs
	created    []EventCreateArgs
	deleted    []EventDeleteArgs
}

func (f *fakeEventOps) EventsBetween(ctx context.Context, userEmail, calendarID, startDate, endDate string, includeEventIDs bool) ([]string, error) {
	f.lastSearch = EventSearchArgs{
		UserEmail:       userEmail,
		CalendarID:      calendarID,
		StartDate:       startDate,
		EndDate:         endDate,
		IncludeEventIDs: includeEventIDs,
	}
	return f.events, nil
}

func (f *fakeEventOps) CreateEvent(ctx context.Context, userEmail, calendarID, eventName, startDatetime, endDatetime string) (string, error) {
	f.created = append(f.created, EventCreateArgs{
		UserEmail:     userEmail,
		CalendarID:    calendarID,
		EventName:     eventName,
		StartDatetime: startDatetime,
		EndDatetime:   endDatetime,
	})
	return "Event created: " + eventName, nil
}

func (f *fakeEventOps) DeleteEvent(ctx context.Context, userEmail, calendarID, eventID string) (string, error) {
	f.deleted = append(f.deleted, EventDeleteArgs{UserEmail: userEmail, CalendarID: calendarID, EventID: eventID})
	return "Event deleted.", nil
}

func newTestDispatcher(t *testing.T, ops EventOps) *Dispatcher {
	t.Helper()
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	d := NewDispatcher(ops, seoul)
	d.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	}
	return d
}

func execute(t *testing.T, d *Dispatcher, command, args string) string {
	t.Helper()
	out, err := d.Execute(context.Background(), Decision{Command: command, Args: json.RawMessage(args)})
	require.NoError(t, err)
	return out
}

func TestDispatcherCurrentTime(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	assert.Equal(t, "2025-03-10T12:30:00.000000Z", execute(t, d, CmdGetCurrentTime, ""))
}

func TestDispatcherFutureTime(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	out := execute(t, d, CmdGetFutureTime, `{"delta_days": 1, "delta_hours": 2, "delta_minutes": 15}`)
	assert.Equal(t, "2025-03-11T14:45:00.000000Z", out)
}

func TestDispatcherSpecificTimeConvertsToUTC(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	// 首尔 2025-06-01 09:00 对应 UTC 当天 00:00
	out := execute(t, d, CmdSetSpecificTime, `{"year": 2025, "month": 6, "day": 1, "hour": 9, "minute": 0}`)
	assert.Equal(t, "2025-06-01T00:00:00.000000Z", out)
}

func TestDispatcherGetCalendarEvents(t *testing.T) {
	ops := &fakeEventOps{events: []string{"Standup: 2025-03-11T09:00:00Z", "Lunch: 2025-03-11T12:00:00Z"}}
	d := newTestDispatcher(t, ops)

	out := execute(t, d, CmdGetCalendarEvents,
		`{"user_email": "alice@x.com", "calendar_id": "primary", "start_date": "a", "end_date": "b", "include_event_ids": true}`)
	assert.Equal(t, "Standup: 2025-03-11T09:00:00Z\nLunch: 2025-03-11T12:00:00Z", out)
	assert.Equal(t, "alice@x.com", ops.lastSearch.UserEmail)
	assert.True(t, ops.lastSearch.IncludeEventIDs)
}

func TestDispatcherGetCalendarEventsEmptyRange(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	out := execute(t, d, CmdGetCalendarEvents,
		`{"user_email": "alice@x.com", "calendar_id": "primary", "start_date": "a", "end_date": "b"}`)
	assert.Equal(t, "No events found in the given range.", out)
}

func TestDispatcherCreateAndDelete(t *testing.T) {
	ops := &fakeEventOps{}
	d := newTestDispatcher(t, ops)

	execute(t, d, CmdCreateCalendarEvent,
		`{"user_email": "alice@x.com", "calendar_id": "primary", "event_name": "Dinner", "start_datetime": "s", "end_datetime": "e"}`)
	require.Len(t, ops.created, 1)
	assert.Equal(t, "Dinner", ops.created[0].EventName)

	execute(t, d, CmdDeleteCalendarEvent,
		`{"user_email": "alice@x.com", "calendar_id": "primary", "event_id": "ev1"}`)
	require.Len(t, ops.deleted, 1)
	assert.Equal(t, "ev1", ops.deleted[0].EventID)
}

func TestDispatcherRejectsUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	_, err := d.Execute(context.Background(), Decision{Command: "drop_all_events"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestDispatcherRejectsUnknownArgs(t *testing.T) {
	d := newTestDispatcher(t, &fakeEventOps{})
	_, err := d.Execute(context.Background(), Decision{
		Command: CmdGetFutureTime,
		Args:    json.RawMessage(`{"delta_weeks": 1}`),
	})
	require.Error(t, err)
}
