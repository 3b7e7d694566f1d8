package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/admin"
	"github.com/docassist/backend/pkg/logger"
)

type AdminHandler struct {
	settings *admin.Store
	password string
}

func NewAdminHandler(settings *admin.Store, password string) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		password: password,
	}
}

func (h *AdminHandler) authorized(given string) bool {
	if h.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.password)) == 1
}

func (h *AdminHandler) ChangeModel(c *fiber.Ctx) error {
	var req struct {
		ModelName     string `json:"model_name"`
		AdminPassword string `json:"admin_password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !h.authorized(req.AdminPassword) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}
	if req.ModelName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Model name is required",
		})
	}

	if err := h.settings.SetActiveModel(c.Context(), req.ModelName); err != nil {
		logger.Error("Failed to change model", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Model changed to " + req.ModelName + " successfully",
	})
}

func (h *AdminHandler) GetCurrentModel(c *fiber.Ctx) error {
	model, err := h.settings.ActiveModel(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"current_model": model,
	})
}

func (h *AdminHandler) SetCustomContext(c *fiber.Ctx) error {
	var req struct {
		CustomContext string `json:"custom_context"`
		AdminPassword string `json:"admin_password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !h.authorized(req.AdminPassword) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	if err := h.settings.SetCustomContext(c.Context(), req.CustomContext); err != nil {
		logger.Error("Failed to set custom context", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Custom context updated successfully",
	})
}

func (h *AdminHandler) GetCustomContext(c *fiber.Ctx) error {
	text, err := h.settings.CustomContext(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"custom_context": text,
	})
}
