package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/log"
)

// SetupHandler 负责数据同步任务的触发、状态查询与索引清空。
type SetupHandler struct {
	setupService service.SetupService
}

// NewSetupHandler 创建一个新的 SetupHandler 实例。
func NewSetupHandler(setupService service.SetupService) *SetupHandler {
	return &SetupHandler{setupService: setupService}
}

// Setup 触发一次异步的同步 + 摄取任务。dataSource 由路由决定。
func (h *SetupHandler) Setup(dataSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.SetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：user_email 不能为空"})
			return
		}

		run, err := h.setupService.Trigger(c.Request.Context(), req.UserEmail, dataSource)
		if err != nil {
			log.Errorf("Setup(%s): %v", dataSource, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "触发同步任务失败"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"code":    http.StatusAccepted,
			"message": "setup task enqueued",
			"data":    run,
		})
	}
}

// Status 查询某用户某数据来源最近一次同步任务的状态。
func (h *SetupHandler) Status(dataSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userEmail := c.Query("user_email")
		if userEmail == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_email 不能为空"})
			return
		}

		run, err := h.setupService.Status(userEmail, dataSource)
		if err != nil {
			log.Errorf("Status(%s): %v", dataSource, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "查询同步状态失败"})
			return
		}
		if run == nil {
			c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "no setup run yet", "data": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": run})
	}
}

// RemoveAll 清空一个数据来源的整个索引命名空间。
func (h *SetupHandler) RemoveAll(dataSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.setupService.RemoveAll(c.Request.Context(), dataSource); err != nil {
			log.Errorf("RemoveAll(%s): %v", dataSource, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "清空索引失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "index reset", "data": nil})
	}
}
