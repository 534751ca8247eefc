package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"hrchat-service/internal/config"
	"hrchat-service/internal/db"
	"hrchat-service/internal/directory"
	"hrchat-service/internal/grpcclient"
	"hrchat-service/internal/handlers"
	"hrchat-service/internal/middleware"
	"hrchat-service/internal/observability"
	"hrchat-service/internal/presence"
	"hrchat-service/internal/rabbitmq"
	"hrchat-service/internal/repositories"
	"hrchat-service/internal/service"
	"hrchat-service/internal/telemetry"
	"hrchat-service/internal/ws"
)

const (
	serviceName         = "hrchat-service"
	auditRoutingKey     = "logs.audit"
	notifierRoutingKey  = "notifications.chat"
	presenceTTL         = 90 * time.Second
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap.NewProduction: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("cannot parse env config", "error", err)
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalw("cannot init tracing", "error", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatalw("cannot connect to database", "error", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(logger, cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()

	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, serviceName, cfg.Environment, logger)
	notifier := telemetry.NewNotifier(publisher, notifierRoutingKey, serviceName, logger)

	rdb := presence.NewRedisClient(cfg.RedisAddr)
	defer rdb.Close()
	tracker := presence.NewTracker(rdb, presenceTTL)

	grpcOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcclient.Codec)),
	}

	authConn, err := grpc.Dial(cfg.AuthGRPCAddr, grpcOpts...)
	if err != nil {
		logger.Fatalw("cannot connect to auth grpc", "addr", cfg.AuthGRPCAddr, "error", err)
	}
	defer authConn.Close()

	directoryConn, err := grpc.Dial(cfg.DirectoryGRPCAddr, grpcOpts...)
	if err != nil {
		logger.Fatalw("cannot connect to directory grpc", "addr", cfg.DirectoryGRPCAddr, "error", err)
	}
	defer directoryConn.Close()

	authClient := grpcclient.NewAuthClient(authConn)
	directoryClient := grpcclient.NewDirectoryClient(directoryConn)

	chatRepo := repositories.NewChatRepo(database, cfg.StoreTimeout)
	messageRepo := repositories.NewMessageRepo(database, cfg.StoreTimeout)

	hub := ws.NewHub(logger)
	messageService := service.NewMessageService(chatRepo, messageRepo, hub, notifier, logger)
	directoryService := directory.NewService(directoryClient, tracker, logger)

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, messageService, directoryService, hub, audit, logger)
	gateway := ws.NewGatewayHandler(hub, chatRepo, authClient, tracker, messageService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.Auth(authClient)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/users", authMiddleware, chatHandler.ListDirectoryUsers)
	router.POST("/chats", authMiddleware, chatHandler.CreateChat)
	router.POST("/chats/dm", authMiddleware, chatHandler.StartDirectChat)
	router.POST("/chats/mark-read", authMiddleware, chatHandler.MarkRead)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.SendMessage)
	router.GET("/chats/:chat_id/members", authMiddleware, chatHandler.ListChatMembers)
	router.GET("/chats/:chat_id/unread", authMiddleware, chatHandler.UnreadCount)
	router.POST("/chats/:chat_id/add-members", authMiddleware, chatHandler.AddMembers)
	router.POST("/chats/:chat_id/make-admin", authMiddleware, chatHandler.MakeAdmin)
	router.POST("/chats/:chat_id/remove-member", authMiddleware, chatHandler.RemoveMember)
	router.POST("/chats/:chat_id/leave", authMiddleware, chatHandler.Leave)

	router.GET("/ws", gateway.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:        cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10),
		Handler:     router,
		ReadTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", srv.Addr, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server error", "error", err)
		}
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("graceful shutdown failed", "error", err)
		}
	}
}
