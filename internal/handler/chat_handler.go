package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/log"
)

// ChatHandler 负责处理邮件与云盘问答的 HTTP 请求, 包括阻塞与 SSE 流式两种形式。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// EmailChat 处理阻塞式邮件问答请求。
func (h *ChatHandler) EmailChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	answer, err := h.chatService.EmailAnswer(c.Request.Context(), req.UserEmail, req.UserMessage)
	if err != nil {
		log.Errorf("EmailChat: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成回答失败"})
		return
	}
	c.JSON(http.StatusOK, model.ChatResponse{Answer: answer})
}

// EmailChatStream 处理流式邮件问答请求, 以 SSE 输出分片。
func (h *ChatHandler) EmailChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	h.streamAnswer(c, func(ctx context.Context, writer llm.ChunkWriter) error {
		return h.chatService.EmailAnswerStream(ctx, req.UserEmail, req.UserMessage, writer)
	})
}

// DriveChat 处理阻塞式云盘问答请求。
func (h *ChatHandler) DriveChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	answer, err := h.chatService.DriveAnswer(c.Request.Context(), req.UserEmail, req.UserMessage, req.Directory)
	if err != nil {
		log.Errorf("DriveChat: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成回答失败"})
		return
	}
	c.JSON(http.StatusOK, model.ChatResponse{Answer: answer})
}

// DriveChatStream 处理流式云盘问答请求, 以 SSE 输出分片。
func (h *ChatHandler) DriveChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	h.streamAnswer(c, func(ctx context.Context, writer llm.ChunkWriter) error {
		return h.chatService.DriveAnswerStream(ctx, req.UserEmail, req.UserMessage, req.Directory, writer)
	})
}

// streamAnswer 把生成逻辑产出的分片经由 channel 转发为 SSE 帧。
// 客户端断开时取消上游生成, 流随分片耗尽自然结束, 没有显式的结束哨兵。
func (h *ChatHandler) streamAnswer(c *gin.Context, run func(ctx context.Context, writer llm.ChunkWriter) error) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	chunks := make(chan string, 16)
	errc := make(chan error, 1)
	go func() {
		defer close(chunks)
		errc <- run(ctx, &channelWriter{ctx: ctx, chunks: chunks})
	}()

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		if err := sse.Encode(w, sse.Event{Event: "message", Data: chunk}); err != nil {
			log.Warnf("写 SSE 帧失败: %v", err)
			return false
		}
		return true
	})

	if err := <-errc; err != nil && ctx.Err() == nil {
		log.Errorf("流式生成失败: %v", err)
	}
}

// channelWriter 把分片写入 channel, 供 HTTP 层消费。取消后停止写入。
type channelWriter struct {
	ctx    context.Context
	chunks chan string
}

func (w *channelWriter) WriteChunk(chunk string) error {
	select {
	case <-w.ctx.Done():
		return w.ctx.Err()
	case w.chunks <- chunk:
		return nil
	}
}
