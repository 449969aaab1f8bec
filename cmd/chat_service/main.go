package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"campus_chat_service/internal/chat/app"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/internal/chat/router"
	"campus_chat_service/pkg/config"
	"campus_chat_service/pkg/database"
	"campus_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	// Mongo stores the messages
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Mongo.User, cfg.Mongo.Password, cfg.Mongo.Host, cfg.Mongo.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.Mongo.RetryCount,
			RetryInterval: time.Duration(cfg.Mongo.RetryInterval) * time.Second,
		},
		cfg.Mongo.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// Redis carries the live fan-out between nodes
	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// MinIO holds attachments, optional
	var attachmentUC *app.AttachmentUseCase
	if cfg.MinIO.Endpoint != "" {
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      cfg.MinIO.Endpoint,
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    3,
			RetryInterval: 2,
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect minio err : %v", err))
		}
		attachmentUC = app.NewAttachmentUseCase(
			repository.NewMinIOAttachmentRepository(mc, cfg.MinIO.PublicURL))
	}

	// Kafka archive feed for the analytics service, optional
	var archive repository.ArchiveWriter
	if cfg.Kafka.Topic != "" {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    3,
			RetryInterval: 2,
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
		}
		defer writer.Close()
		archive = repository.NewKafkaArchiveWriter(writer)
	}

	msgRepo := repository.NewMongoChatMessageRepository(mongo.Database)
	pubsub := repository.NewRedisPubSub(redisClient)

	sendMessageUC := app.NewSendMessageUseCase(msgRepo, pubsub, archive)
	historyUC := app.NewHistoryUseCase(msgRepo)
	presenceUC := app.NewPresenceUseCase(pubsub)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(sendMessageUC, presenceUC, pubsub),
		app.NewChatHTTPHandler(historyUC, attachmentUC))

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
