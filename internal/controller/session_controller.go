package controller

import (
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
	InitialData(ctx *fiber.Ctx) error
}

type sessionController struct {
	conversation service.IConversationService
	characters   service.ICharacterService
	models       service.IModelService
}

func NewSessionController(
	conversation service.IConversationService,
	characters service.ICharacterService,
	models service.IModelService,
) ISessionController {
	return &sessionController{
		conversation: conversation,
		characters:   characters,
		models:       models,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	r.Get("/session", c.Show)
	r.Get("/get_initial_data", c.InitialData)
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res := c.conversation.GetSession(ctx.UserContext(), serverutils.SessionID(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *sessionController) InitialData(ctx *fiber.Ctx) error {
	reqCtx := ctx.UserContext()
	sessionId := serverutils.SessionID(ctx)

	catalog, err := c.models.Catalog(reqCtx)
	if err != nil {
		return err
	}

	res := &dto.InitialDataResponse{
		ChatModels:           catalog.ChatModels,
		CaptionModels:        catalog.CaptionModels,
		SelectedChatModel:    c.conversation.ChatModel(reqCtx, sessionId),
		SelectedCaptionModel: c.conversation.CaptionModel(reqCtx, sessionId),
		Characters:           c.characters.List(reqCtx),
		SelectedCharacter:    c.conversation.SelectedCharacter(reqCtx, sessionId),
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get initial data", res))
}
