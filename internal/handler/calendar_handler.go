package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/log"
)

// CalendarHandler 负责日历助手与日历列表相关的 API 请求。
type CalendarHandler struct {
	calendarService service.CalendarService
}

// NewCalendarHandler 创建一个新的 CalendarHandler 实例。
func NewCalendarHandler(calendarService service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// Chat 处理一条发给日历助手的消息。
func (h *CalendarHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	answer, err := h.calendarService.Chat(c.Request.Context(), req.UserEmail, req.UserMessage, req.CalendarID)
	if err != nil {
		log.Errorf("CalendarChat: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "日历助手处理失败"})
		return
	}
	c.JSON(http.StatusOK, model.ChatResponse{Answer: answer})
}

// ListCalendars 返回用户可见的日历名称列表。
func (h *CalendarHandler) ListCalendars(c *gin.Context) {
	var req model.CalendarListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	list, err := h.calendarService.ListCalendars(c.Request.Context(), req.Email)
	if err != nil {
		log.Errorf("ListCalendars: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取日历列表失败"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListEvents 返回指定日历即将发生的事件。
func (h *CalendarHandler) ListEvents(c *gin.Context) {
	var req model.EventListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	events, err := h.calendarService.ListUpcomingEvents(c.Request.Context(), req.Email, req.CalendarID)
	if err != nil {
		log.Errorf("ListEvents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取事件列表失败"})
		return
	}
	c.JSON(http.StatusOK, events)
}
