package http

import (
	"github.com/NeuralTrust/TrustBoundary/pkg/version"
	"github.com/gofiber/fiber/v2"
)

type getVersionHandler struct{}

func NewGetVersionHandler() Handler {
	return &getVersionHandler{}
}

func (h *getVersionHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(version.GetInfo())
}
