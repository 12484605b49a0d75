// Package calendar 实现了日历助手的命令分发与对话代理。
// 大模型通过一组枚举命令操作日历, 每个命令有固定的参数结构,
// 统一经由分发表执行, 不做开放式的工具注入。
package calendar

import "encoding/json"

// 日历命令的枚举值。
const (
	CmdGetCurrentTime      = "get_current_time"
	CmdGetFutureTime       = "get_future_time"
	CmdSetSpecificTime     = "set_specific_time"
	CmdGetCalendarEvents   = "get_calendar_events"
	CmdCreateCalendarEvent = "create_calendar_event"
	CmdDeleteCalendarEvent = "delete_calendar_event"
)

// FutureTimeArgs 是 get_future_time 命令的参数。
type FutureTimeArgs struct {
	DeltaDays    int `json:"delta_days"`
	DeltaHours   int `json:"delta_hours"`
	DeltaMinutes int `json:"delta_minutes"`
	DeltaSeconds int `json:"delta_seconds"`
}

// SpecificTimeArgs 是 set_specific_time 命令的参数, 按本地时区解释。
type SpecificTimeArgs struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// EventSearchArgs 是 get_calendar_events 命令的参数。
type EventSearchArgs struct {
	UserEmail       string `json:"user_email"`
	CalendarID      string `json:"calendar_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	IncludeEventIDs bool   `json:"include_event_ids"`
}

// EventCreateArgs 是 create_calendar_event 命令的参数。
type EventCreateArgs struct {
	UserEmail     string `json:"user_email"`
	CalendarID    string `json:"calendar_id"`
	EventName     string `json:"event_name"`
	StartDatetime string `json:"start_datetime"`
	EndDatetime   string `json:"end_datetime"`
}

// EventDeleteArgs 是 delete_calendar_event 命令的参数。
type EventDeleteArgs struct {
	UserEmail  string `json:"user_email"`
	CalendarID string `json:"calendar_id"`
	EventID    string `json:"event_id"`
}

// Decision 是模型每一轮输出的结构: 要么调用一个命令, 要么给出最终回答。
type Decision struct {
	Command string          `json:"command,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Answer  string          `json:"answer,omitempty"`
}
