package main

import (
	"campus_chat_service/internal/chat/router"

	"github.com/gofiber/fiber/v2"
)

// swagger generation entry point
// swag init output ./docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, nil, nil)
}
