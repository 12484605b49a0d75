package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcalendar "google.golang.org/api/calendar/v3"

	"workspace-assistant-go/internal/calendar"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/workspace"
)

// upcomingEventsLimit 列表接口默认返回的事件数量
const upcomingEventsLimit = 10

// CalendarService 接口定义了日历相关的对话与列表操作。
type CalendarService interface {
	Chat(ctx context.Context, userEmail, userMessage, calendarID string) (string, error)
	ListCalendars(ctx context.Context, userEmail string) (*model.CalendarList, error)
	ListUpcomingEvents(ctx context.Context, userEmail, calendarID string) (*model.EventList, error)
}

// calendarService 是 CalendarService 接口的实现, 同时为命令分发器提供事件操作。
type calendarService struct {
	users    repository.UserRepository
	google   *workspace.Client
	timezone string
	agent    *calendar.Agent
}

// NewCalendarService 创建一个新的 CalendarService 实例。
// location 用于日期分量到 UTC 的换算, timezone 是创建事件时的展示时区。
func NewCalendarService(users repository.UserRepository, google *workspace.Client, llmClient llm.Client, location *time.Location, timezone string) CalendarService {
	s := &calendarService{
		users:    users,
		google:   google,
		timezone: timezone,
	}
	dispatcher := calendar.NewDispatcher(s, location)
	s.agent = calendar.NewAgent(llmClient, dispatcher)
	return s
}

// Chat 把用户消息交给日历助手处理。
func (s *calendarService) Chat(ctx context.Context, userEmail, userMessage, calendarID string) (string, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	log.Infof("【步骤1】日历助手处理消息, user: %s, calendar: %s", userEmail, calendarID)
	return s.agent.ProcessMessage(ctx, userEmail, userMessage, calendarID)
}

// ListCalendars 返回用户可见的全部日历名称。
func (s *calendarService) ListCalendars(ctx context.Context, userEmail string) (*model.CalendarList, error) {
	srv, err := s.calendarAPI(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	names, err := workspace.ListCalendars(srv)
	if err != nil {
		return nil, err
	}
	return &model.CalendarList{Email: userEmail, CalendarNames: names}, nil
}

// ListUpcomingEvents 返回指定日历即将发生的事件摘要。
func (s *calendarService) ListUpcomingEvents(ctx context.Context, userEmail, calendarID string) (*model.EventList, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	srv, err := s.calendarAPI(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	events, err := workspace.ListUpcomingEvents(srv, calendarID, time.Now().UTC().Format(time.RFC3339), upcomingEventsLimit)
	if err != nil {
		return nil, err
	}
	summaries := make([]string, 0, len(events))
	for _, event := range events {
		dateInfo := ""
		if event.Start != nil {
			dateInfo = event.Start.Date
			if dateInfo == "" {
				dateInfo = event.Start.DateTime
			}
		}
		summaries = append(summaries, fmt.Sprintf("%s: %s", event.Summary, dateInfo))
	}
	return &model.EventList{Email: userEmail, Events: summaries}, nil
}

// EventsBetween 实现 calendar.EventOps, 查询时间区间内的事件。
func (s *calendarService) EventsBetween(ctx context.Context, userEmail, calendarID, startDate, endDate string, includeEventIDs bool) ([]string, error) {
	srv, err := s.calendarAPI(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	return workspace.EventsBetween(srv, calendarID, startDate, endDate, includeEventIDs)
}

// CreateEvent 实现 calendar.EventOps, 创建事件并返回观察文本。
func (s *calendarService) CreateEvent(ctx context.Context, userEmail, calendarID, eventName, startDatetime, endDatetime string) (string, error) {
	srv, err := s.calendarAPI(ctx, userEmail)
	if err != nil {
		return "", err
	}
	created, err := workspace.CreateEvent(srv, calendarID, eventName, startDatetime, endDatetime, s.timezone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Event created: %s (event ID: %s)", created.Summary, created.Id), nil
}

// DeleteEvent 实现 calendar.EventOps, 删除事件并返回观察文本。
func (s *calendarService) DeleteEvent(ctx context.Context, userEmail, calendarID, eventID string) (string, error) {
	srv, err := s.calendarAPI(ctx, userEmail)
	if err != nil {
		return "", err
	}
	if err := workspace.DeleteEvent(srv, calendarID, eventID); err != nil {
		return "", err
	}
	return "Event deleted.", nil
}

// calendarAPI 加载用户令牌并构造 Calendar API 服务, 刷新后的令牌自动落库。
func (s *calendarService) calendarAPI(ctx context.Context, userEmail string) (*gcalendar.Service, error) {
	user, err := s.users.FindByEmail(userEmail)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userEmail, err)
	}
	onRefresh := func(tok *oauth2.Token) error {
		expiry := tok.Expiry
		return s.users.UpdateTokens(userEmail, tok.AccessToken, tok.RefreshToken, &expiry)
	}
	return s.google.CalendarService(ctx, user.AccessToken, user.RefreshToken, onRefresh)
}
