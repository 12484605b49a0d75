package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/log"
)

// maxAgentSteps 一次对话中命令调用的上限, 防止模型陷入循环。
const maxAgentSteps = 8

// fallbackAnswer 超过步数上限仍没有最终回答时返回的文案。
const fallbackAnswer = "I couldn't process your request at this time."

// personaPrompt 日历助手的人设, 与模型之间的约定文案。
const personaPrompt = "You are a funny and friendly Google Calendar assistant. " +
	"NEVER print event ids or links to the user. " +
	"Communicate naturally like talking in person - no bullet points or formal formatting. " +
	"Be helpful and occasionally witty while focusing on what, when, where, and who. " +
	"Respond conversationally as if chatting with a friend who's helping manage their schedule. " +
	"NEVER use emojis. All times are in Asia/Seoul (KST/UTC+9)."

// protocolPrompt 向模型说明命令调用协议与各命令的参数结构。
const protocolPrompt = `You can use the following commands to work with the calendar. To invoke a command, reply with ONLY a JSON object of the form {"command": "<name>", "args": {...}} and nothing else. When you have the final reply for the user, reply with ONLY {"answer": "<your reply>"}.

Available commands:
- get_current_time: get the current time in RFC3339 format. args: {}
- get_future_time: calculate a future time from a delta. args: {"delta_days": int, "delta_hours": int, "delta_minutes": int, "delta_seconds": int}
- set_specific_time: convert local date and time components to RFC3339 format. args: {"year": int, "month": int, "day": int, "hour": int, "minute": int}
- get_calendar_events: retrieve calendar events within a date range. args: {"user_email": string, "calendar_id": string, "start_date": string, "end_date": string, "include_event_ids": bool}
- create_calendar_event: create a new calendar event. args: {"user_email": string, "calendar_id": string, "event_name": string, "start_datetime": string, "end_datetime": string}
- delete_calendar_event: delete a calendar event. args: {"user_email": string, "calendar_id": string, "event_id": string}`

// Agent 是日历助手的对话代理: 模型决定调用哪个命令, 分发器执行, 结果回灌给模型。
type Agent struct {
	llmClient  llm.Client
	dispatcher *Dispatcher
	now        func() time.Time
}

// NewAgent 创建一个新的 Agent 实例。
func NewAgent(llmClient llm.Client, dispatcher *Dispatcher) *Agent {
	return &Agent{
		llmClient:  llmClient,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// ProcessMessage 处理一条用户消息, 返回助手的最终回答。
func (a *Agent) ProcessMessage(ctx context.Context, userEmail, userMessage, calendarID string) (string, error) {
	transcript := &strings.Builder{}
	transcript.WriteString(personaPrompt)
	transcript.WriteString("\n\n")
	transcript.WriteString(protocolPrompt)
	transcript.WriteString("\n\n")
	transcript.WriteString(a.formatInput(userEmail, userMessage, calendarID))

	for step := 1; step <= maxAgentSteps; step++ {
		output, err := a.llmClient.Generate(ctx, transcript.String())
		if err != nil {
			return "", fmt.Errorf("calendar agent step %d: %w", step, err)
		}

		decision, ok := parseDecision(output)
		if !ok {
			// 模型没有遵守协议, 把原始输出当作最终回答
			log.Warnf("日历助手第 %d 步输出无法解析为命令, 直接作为回答返回", step)
			return strings.TrimSpace(output), nil
		}
		if decision.Command == "" {
			return decision.Answer, nil
		}

		log.Infof("【步骤%d】日历助手执行命令: %s", step, decision.Command)
		observation, err := a.dispatcher.Execute(ctx, decision)
		if err != nil {
			// 执行失败回灌错误信息, 让模型有机会修正参数
			observation = "Error: " + err.Error()
			log.Warnf("日历命令 %s 执行失败: %v", decision.Command, err)
		}
		fmt.Fprintf(transcript, "\nResult of %s: %s\n", decision.Command, observation)
	}

	log.Warnf("日历助手超过最大步数仍未产出回答, user: %s", userEmail)
	return fallbackAnswer, nil
}

// formatInput 组装喂给模型的请求上下文。
func (a *Agent) formatInput(userEmail, userMessage, calendarID string) string {
	now := a.now().UTC()
	return fmt.Sprintf(
		"calendar_id: %s\nuser_email: %s\ncurrent datetime: %s\ncurrent weekday: %s\nuser input: %s\n",
		calendarID,
		userEmail,
		now.Format(rfc3339Micro),
		now.Weekday().String(),
		userMessage,
	)
}

// parseDecision 解析模型输出, 容忍代码块围栏等常见包装。
func parseDecision(output string) (Decision, bool) {
	trimmed := strings.TrimSpace(output)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var decision Decision
	if err := json.Unmarshal([]byte(trimmed), &decision); err != nil {
		return Decision{}, false
	}
	if decision.Command == "" && decision.Answer == "" {
		return Decision{}, false
	}
	return decision, true
}
