package controller

import (
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICharacterController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reload(ctx *fiber.Ctx) error
	Select(ctx *fiber.Ctx) error
}

type characterController struct {
	service service.ICharacterService
}

func NewCharacterController(service service.ICharacterService) ICharacterController {
	return &characterController{service: service}
}

func (c *characterController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/characters")
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Post("reload", c.Reload)
	h.Get(":key", c.Show)
	h.Put(":key", c.Update)
	h.Delete(":key", c.Delete)

	r.Post("/select_character", c.Select)
	r.Post("/create_character", c.Create)
}

func (c *characterController) GetAll(ctx *fiber.Ctx) error {
	res := c.service.List(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Success get all characters", res))
}

func (c *characterController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Get(ctx.UserContext(), ctx.Params("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show character", res))
}

func (c *characterController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateCharacterRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).
		JSON(serverutils.SuccessResponse("Character \""+res.Name+"\" created successfully", res))
}

func (c *characterController) Update(ctx *fiber.Ctx) error {
	var req dto.UpdateCharacterRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Update(ctx.UserContext(), ctx.Params("key"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update character", res))
}

func (c *characterController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.Delete(ctx.UserContext(), ctx.Params("key")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete character", nil))
}

func (c *characterController) Reload(ctx *fiber.Ctx) error {
	res, err := c.service.Reload(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Characters reloaded", res))
}

func (c *characterController) Select(ctx *fiber.Ctx) error {
	var req dto.SelectCharacterRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Select(ctx.UserContext(), serverutils.SessionID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Selected character: "+res.CharacterName, res))
}
