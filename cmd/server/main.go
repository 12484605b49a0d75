// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"workspace-assistant-go/internal/config"
	"workspace-assistant-go/internal/handler"
	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/ingest"
	"workspace-assistant-go/internal/middleware"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/pipeline"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/database"
	"workspace-assistant-go/pkg/embedding"
	"workspace-assistant-go/pkg/es"
	"workspace-assistant-go/pkg/kafka"
	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/storage"
	"workspace-assistant-go/pkg/tika"
	"workspace-assistant-go/pkg/token"
	"workspace-assistant-go/pkg/workspace"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、Elasticsearch 与对象存储
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	defer database.CloseMySQL(db)
	if err := db.AutoMigrate(&model.User{}, &model.IngestionRun{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}

	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	archive, err := storage.NewArchive(cfg.MinIO)
	if err != nil {
		// 对象存储仅用于备份, 不可用时降级运行
		log.Errorf("MinIO 初始化失败, 跳过备份功能: %v", err)
		archive = nil
	}

	// 4. 初始化向量索引与各客户端
	embeddingClient := embedding.NewClient(cfg.Embedding)
	store := index.NewStore(esClient, embeddingClient, cfg.Embedding.Dimensions)
	if err := store.EnsureNamespaces(context.Background()); err != nil {
		log.Fatalf("向量索引初始化失败: %v", err)
	}

	llmClient := llm.NewClient(cfg.LLM)
	tikaClient := tika.NewClient(cfg.Tika)
	googleClient := workspace.NewClient(cfg.Google)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	location, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		log.Fatalf("无法加载时区 '%s': %v", cfg.Calendar.Timezone, err)
	}

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(rdb)
	ingestionRepo := repository.NewIngestionRepository(db)

	// 6. 初始化 Service (依赖注入)
	converter := ingest.NewConverter(tikaClient)
	drivePipeline := ingest.NewDrivePipeline(store, converter, cfg.Data.RootLocation)
	emailPipeline := ingest.NewEmailPipeline(store, converter, cfg.Data.RootLocation)

	userService := service.NewUserService(userRepo, jwtManager, googleClient)
	chatService := service.NewChatService(store, llmClient, conversationRepo)
	calendarService := service.NewCalendarService(userRepo, googleClient, llmClient, location, cfg.Calendar.Timezone)
	syncService := service.NewSyncService(userRepo, googleClient, archive, cfg.Data.RootLocation)
	setupService := service.NewSetupService(ingestionRepo, producer, store)

	// 7. 启动后台 Kafka 消费者处理 setup 任务
	processor := pipeline.NewProcessor(userRepo, ingestionRepo, syncService, drivePipeline, emailPipeline)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(userService)
	chatHandler := handler.NewChatHandler(chatService)
	setupHandler := handler.NewSetupHandler(setupService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	wsHandler := handler.NewWsChatHandler(chatService, jwtManager)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/token", authHandler.GoogleLogin)
			auth.POST("/login", authHandler.LocalLogin)
			auth.POST("/refreshToken", authHandler.RefreshToken)
		}

		authed := api.Group("/")
		authed.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			email := authed.Group("/email")
			{
				email.POST("/chat", chatHandler.EmailChat)
				email.POST("/chat/stream", chatHandler.EmailChatStream)
				email.POST("/setup", setupHandler.Setup(model.DataSourceEmail))
				email.GET("/setup/status", setupHandler.Status(model.DataSourceEmail))
				email.POST("/remove_all", setupHandler.RemoveAll(model.DataSourceEmail))
			}

			drive := authed.Group("/drive")
			{
				drive.POST("/chat", chatHandler.DriveChat)
				drive.POST("/chat/stream", chatHandler.DriveChatStream)
				drive.POST("/setup", setupHandler.Setup(model.DataSourceDrive))
				drive.GET("/setup/status", setupHandler.Status(model.DataSourceDrive))
				drive.POST("/remove_all", setupHandler.RemoveAll(model.DataSourceDrive))
			}

			calendarGroup := authed.Group("/calendar")
			{
				calendarGroup.POST("/chat", calendarHandler.Chat)
				calendarGroup.POST("/list_calendars", calendarHandler.ListCalendars)
				calendarGroup.POST("/list_events", calendarHandler.ListEvents)
			}
		}
	}
	// WebSocket 路由在认证中间件之外, 令牌经由路径携带
	r.GET("/ws/chat/:source/:token", wsHandler.Handle)

	// 10. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	cancelConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
