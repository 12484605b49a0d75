package model

import "time"

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest 是 /chat 接口的请求体。
// Directory 仅 drive 来源使用（file_path 子串过滤）；
// CalendarID 仅 calendar 来源使用。
type ChatRequest struct {
	UserEmail   string `json:"user_email" binding:"required"`
	UserMessage string `json:"user_message" binding:"required"`
	Directory   string `json:"directory"`
	CalendarID  string `json:"calendar_id"`
}

// ChatResponse 是 /chat 接口的响应体。
type ChatResponse struct {
	Answer string `json:"answer"`
}

// SetupRequest 是 /setup 接口的请求体。
type SetupRequest struct {
	UserEmail string `json:"user_email" binding:"required"`
}
