package controller

import (
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDownloadController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
}

type downloadController struct {
	service service.IDownloadService
}

func NewDownloadController(service service.IDownloadService) IDownloadController {
	return &downloadController{service: service}
}

func (c *downloadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/downloads")
	h.Post("", c.Start)
	h.Get("", c.Status)
	h.Delete("", c.Cancel)
}

func (c *downloadController) Start(ctx *fiber.Ctx) error {
	var req dto.StartDownloadRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Start(ctx.UserContext(), serverutils.SessionID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Download started", res))
}

func (c *downloadController) Status(ctx *fiber.Ctx) error {
	res := c.service.Poll(ctx.UserContext(), serverutils.SessionID(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get download status", res))
}

func (c *downloadController) Cancel(ctx *fiber.Ctx) error {
	res, err := c.service.Cancel(ctx.UserContext(), serverutils.SessionID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Download cancelled", res))
}
