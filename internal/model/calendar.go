package model

// CalendarListRequest 请求某个用户的日历列表。
type CalendarListRequest struct {
	Email string `json:"email" binding:"required"`
}

// CalendarList 是日历列表的响应。
type CalendarList struct {
	Email         string   `json:"email"`
	CalendarNames []string `json:"calendar_names"`
}

// EventListRequest 请求某个日历下的事件列表。
type EventListRequest struct {
	Email      string `json:"email" binding:"required"`
	CalendarID string `json:"calendar_id" binding:"required"`
}

// EventList 是事件列表的响应，事件以 "summary - start" 文本呈现。
type EventList struct {
	Email  string   `json:"email"`
	Events []string `json:"events"`
}
