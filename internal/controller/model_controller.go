package controller

import (
	"net/url"

	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type IModelController interface {
	RegisterRoutes(r fiber.Router)
	Refresh(ctx *fiber.Ctx) error
	GetInstalled(ctx *fiber.Ctx) error
	DeleteInstalled(ctx *fiber.Ctx) error
}

type modelController struct {
	service service.IModelService
}

func NewModelController(service service.IModelService) IModelController {
	return &modelController{service: service}
}

func (c *modelController) RegisterRoutes(r fiber.Router) {
	r.Post("/refresh_models", c.Refresh)

	h := r.Group("/models/installed")
	h.Get("", c.GetInstalled)
	// Model names contain '/' and ':', so the whole tail is the name
	h.Delete("*", c.DeleteInstalled)
}

func (c *modelController) Refresh(ctx *fiber.Ctx) error {
	res, err := c.service.Refresh(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Models refreshed successfully", res))
}

func (c *modelController) GetInstalled(ctx *fiber.Ctx) error {
	res, err := c.service.ListInstalled(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get installed models", res))
}

func (c *modelController) DeleteInstalled(ctx *fiber.Ctx) error {
	name, err := url.PathUnescape(ctx.Params("*"))
	if err != nil || name == "" {
		return apperror.InvalidInput("Model name is required")
	}

	if err := c.service.DeleteInstalled(ctx.UserContext(), name); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Model "+name+" deleted", nil))
}
