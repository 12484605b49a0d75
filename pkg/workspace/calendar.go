package workspace

import (
	"fmt"

	calendar "google.golang.org/api/calendar/v3"
)

// ListCalendars 返回用户可见的全部日历名称。
func ListCalendars(srv *calendar.Service) ([]string, error) {
	list, err := srv.CalendarList.List().Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list calendars: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Summary)
	}
	return names, nil
}

// ListUpcomingEvents 返回指定日历即将发生的事件。
func ListUpcomingEvents(srv *calendar.Service, calendarID, timeMin string, maxResults int64) ([]*calendar.Event, error) {
	call := srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults)
	if timeMin != "" {
		call = call.TimeMin(timeMin)
	}
	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list events: %w", err)
	}
	return events.Items, nil
}

// EventsBetween 返回时间区间内的事件，格式化为 "summary: dateInfo"，
// includeEventIDs 为 true 时附加 "(event ID: …)"。
func EventsBetween(srv *calendar.Service, calendarID, startTime, endTime string, includeEventIDs bool) ([]string, error) {
	events, err := srv.Events.List(calendarID).
		TimeMin(startTime).
		TimeMax(endTime).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list events: %w", err)
	}

	formatted := make([]string, 0, len(events.Items))
	for _, event := range events.Items {
		dateInfo := ""
		if event.Start != nil {
			dateInfo = event.Start.Date
			if dateInfo == "" {
				dateInfo = event.Start.DateTime
			}
		}
		if includeEventIDs {
			formatted = append(formatted, fmt.Sprintf("%s: %s (event ID: %s)", event.Summary, dateInfo, event.Id))
		} else {
			formatted = append(formatted, fmt.Sprintf("%s: %s", event.Summary, dateInfo))
		}
	}
	return formatted, nil
}

// CreateEvent 在指定日历创建事件，时间为 RFC3339，展示时区由配置决定。
func CreateEvent(srv *calendar.Service, calendarID, eventName, startDateTime, endDateTime, timezone string) (*calendar.Event, error) {
	event := &calendar.Event{
		Summary: eventName,
		Start: &calendar.EventDateTime{
			DateTime: startDateTime,
			TimeZone: timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: endDateTime,
			TimeZone: timezone,
		},
	}
	created, err := srv.Events.Insert(calendarID, event).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}
	return created, nil
}

// DeleteEvent 按事件 ID 删除日历事件。
func DeleteEvent(srv *calendar.Service, calendarID, eventID string) error {
	if err := srv.Events.Delete(calendarID, eventID).Do(); err != nil {
		return fmt.Errorf("unable to delete event: %w", err)
	}
	return nil
}
