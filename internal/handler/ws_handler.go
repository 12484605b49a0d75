package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// WsChatHandler 通过 WebSocket 提供流式问答, 是 SSE 之外的另一条流式通道。
// 连接路径携带数据来源与会话令牌: /ws/chat/:source/:token
type WsChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewWsChatHandler 创建一个新的 WsChatHandler 实例。
func NewWsChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *WsChatHandler {
	return &WsChatHandler{chatService: chatService, jwtManager: jwtManager}
}

// wsInbound 是客户端发来的消息: 一个问题或一条停止指令。
type wsInbound struct {
	Type        string `json:"type,omitempty"` // "stop" 表示中断当前回答
	UserMessage string `json:"user_message,omitempty"`
	Directory   string `json:"directory,omitempty"`
}

// wsSession 串行化对同一连接的并发写。
// gorilla/websocket 只允许一个并发写者, 回答协程和读循环都会写帧。
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) writeMessage(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSession) writeJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.writeMessage(b); err != nil {
		log.Warnf("写 WebSocket 消息失败: %v", err)
	}
}

// Handle 处理一个传入的 WebSocket 连接。
// 读循环始终在跑, 回答在独立协程里流式产出, 因此 stop 指令
// 可以在回答进行中到达并立即生效。同一连接同时只允许一个回答,
// 回答期间到达的新问题直接忽略。
func (h *WsChatHandler) Handle(c *gin.Context) {
	source := c.Param("source")
	if source != model.DataSourceEmail && source != model.DataSourceDrive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的数据来源"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, 用户: %s, 来源: %s", claims.Email, source)

	session := &wsSession{conn: conn}
	var stopped atomic.Bool
	var busy atomic.Bool
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			return
		}

		var inbound wsInbound
		if err := json.Unmarshal(message, &inbound); err != nil {
			// 非 JSON 消息按纯文本问题处理
			inbound = wsInbound{UserMessage: string(message)}
		}

		if inbound.Type == "stop" {
			stopped.Store(true)
			session.writeJSON(map[string]interface{}{
				"type":      "stop",
				"message":   "响应已停止",
				"timestamp": time.Now().UnixMilli(),
			})
			continue
		}
		if inbound.UserMessage == "" {
			continue
		}
		if !busy.CompareAndSwap(false, true) {
			log.Warnf("上一个回答尚未结束, 忽略新问题, 用户: %s", claims.Email)
			continue
		}

		stopped.Store(false)
		ctx := c.Request.Context()
		go func(question, directory string) {
			defer busy.Store(false)

			writer := &wsChunkWriter{session: session, stopped: &stopped}
			var streamErr error
			if source == model.DataSourceEmail {
				streamErr = h.chatService.EmailAnswerStream(ctx, claims.Email, question, writer)
			} else {
				streamErr = h.chatService.DriveAnswerStream(ctx, claims.Email, question, directory, writer)
			}
			if streamErr != nil && !errors.Is(streamErr, errStreamStopped) {
				log.Errorf("处理流式响应失败: %v", streamErr)
				session.writeJSON(map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
			}

			// 无论成功失败都发送 completion 通知, 前端据此收尾
			session.writeJSON(map[string]interface{}{
				"type":      "completion",
				"status":    "finished",
				"message":   "响应已完成",
				"timestamp": time.Now().UnixMilli(),
			})
		}(inbound.UserMessage, inbound.Directory)
	}
}

// errStreamStopped 表示用户发出了停止指令, 不作为错误上报。
var errStreamStopped = context.Canceled

// wsChunkWriter 把分片包装为 {"chunk": ...} 帧写入 WebSocket 连接。
type wsChunkWriter struct {
	session *wsSession
	stopped *atomic.Bool
}

// WriteChunk 实现 llm.ChunkWriter。停止标志置位后返回取消错误, 使上游中断拉流。
func (w *wsChunkWriter) WriteChunk(chunk string) error {
	if w.stopped.Load() {
		return errStreamStopped
	}
	frame, err := json.Marshal(map[string]string{"chunk": chunk})
	if err != nil {
		return err
	}
	return w.session.writeMessage(frame)
}
