package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rfc3339Micro 与外部日历接口交换时间时使用的格式, UTC 微秒精度。
const rfc3339Micro = "2006-01-02T15:04:05.000000Z"

// EventOps 是分发器操作日历事件所依赖的接口, 由上层服务用用户令牌实现。
type EventOps interface {
	EventsBetween(ctx context.Context, userEmail, calendarID, startDate, endDate string, includeEventIDs bool) ([]string, error)
	CreateEvent(ctx context.Context, userEmail, calendarID, eventName, startDatetime, endDatetime string) (string, error)
	DeleteEvent(ctx context.Context, userEmail, calendarID, eventID string) (string, error)
}

// Dispatcher 负责把模型产出的命令调用路由到对应的处理函数。
type Dispatcher struct {
	ops      EventOps
	location *time.Location
	now      func() time.Time
	table    map[string]func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewDispatcher 创建一个新的 Dispatcher 实例。location 是 set_specific_time 的本地时区。
func NewDispatcher(ops EventOps, location *time.Location) *Dispatcher {
	d := &Dispatcher{
		ops:      ops,
		location: location,
		now:      time.Now,
	}
	d.table = map[string]func(ctx context.Context, args json.RawMessage) (string, error){
		CmdGetCurrentTime:      d.getCurrentTime,
		CmdGetFutureTime:       d.getFutureTime,
		CmdSetSpecificTime:     d.setSpecificTime,
		CmdGetCalendarEvents:   d.getCalendarEvents,
		CmdCreateCalendarEvent: d.createCalendarEvent,
		CmdDeleteCalendarEvent: d.deleteCalendarEvent,
	}
	return d
}

// Execute 执行一次命令调用, 返回给模型的观察文本。未知命令返回错误。
func (d *Dispatcher) Execute(ctx context.Context, call Decision) (string, error) {
	handler, ok := d.table[call.Command]
	if !ok {
		return "", fmt.Errorf("unknown command: %q", call.Command)
	}
	return handler(ctx, call.Args)
}

// Commands 返回所有已注册命令的名称, 用于提示词里的命令清单。
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.table))
	for name := range d.table {
		names = append(names, name)
	}
	return names
}

func (d *Dispatcher) getCurrentTime(ctx context.Context, args json.RawMessage) (string, error) {
	return d.now().UTC().Format(rfc3339Micro), nil
}

func (d *Dispatcher) getFutureTime(ctx context.Context, args json.RawMessage) (string, error) {
	var in FutureTimeArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	future := d.now().UTC().Add(
		time.Duration(in.DeltaDays)*24*time.Hour +
			time.Duration(in.DeltaHours)*time.Hour +
			time.Duration(in.DeltaMinutes)*time.Minute +
			time.Duration(in.DeltaSeconds)*time.Second,
	)
	return future.Format(rfc3339Micro), nil
}

// setSpecificTime 把本地时区的日期时间分量转换为 UTC 的 RFC3339 字符串。
func (d *Dispatcher) setSpecificTime(ctx context.Context, args json.RawMessage) (string, error) {
	var in SpecificTimeArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	local := time.Date(in.Year, time.Month(in.Month), in.Day, in.Hour, in.Minute, 0, 0, d.location)
	return local.UTC().Format(rfc3339Micro), nil
}

func (d *Dispatcher) getCalendarEvents(ctx context.Context, args json.RawMessage) (string, error) {
	var in EventSearchArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	events, err := d.ops.EventsBetween(ctx, in.UserEmail, in.CalendarID, in.StartDate, in.EndDate, in.IncludeEventIDs)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "No events found in the given range.", nil
	}
	return strings.Join(events, "\n"), nil
}

func (d *Dispatcher) createCalendarEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var in EventCreateArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	return d.ops.CreateEvent(ctx, in.UserEmail, in.CalendarID, in.EventName, in.StartDatetime, in.EndDatetime)
}

func (d *Dispatcher) deleteCalendarEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var in EventDeleteArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	return d.ops.DeleteEvent(ctx, in.UserEmail, in.CalendarID, in.EventID)
}

// decodeArgs 严格解析命令参数, 未知字段视为模型输出错误。
func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid command args: %w", err)
	}
	return nil
}
