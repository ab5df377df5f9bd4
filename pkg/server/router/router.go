package router

import "github.com/gofiber/fiber/v2"

// ServerRouter registers a group of routes on an app.
type ServerRouter interface {
	BuildRoutes(app *fiber.App) error
}
