package router

import (
	"context"

	"campus_chat_service/internal/chat/app"
	"campus_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the chat service routes
// @title Campus Chat Service API
// @version 1.0
// @description Real-time chat core of the student academic-tracking platform
// @host localhost:8084
// @BasePath /
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHTTP *app.ChatHTTPHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)

	r.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	chatRoutes := r.Group("/api/chat")
	chatRoutes.Get("/messages", chatHTTP.Messages)
	chatRoutes.Post("/attachments", chatHTTP.UploadAttachment)
}
