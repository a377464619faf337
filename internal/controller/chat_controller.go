package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	UploadImage(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	GetChatModel(ctx *fiber.Ctx) error
	SetChatModel(ctx *fiber.Ctx) error
	GetCaptionModel(ctx *fiber.Ctx) error
	SetCaptionModel(ctx *fiber.Ctx) error
}

type chatController struct {
	conversation service.IConversationService
	uploadDir    string
}

func NewChatController(conversation service.IConversationService, uploadDir string) IChatController {
	return &chatController{
		conversation: conversation,
		uploadDir:    uploadDir,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/send_message", c.SendMessage)
	r.Post("/upload_image", c.UploadImage)
	r.Post("/reset_chat", c.Reset)

	r.Get("/chat_model", c.GetChatModel)
	r.Post("/chat_model", c.SetChatModel)
	r.Get("/caption_model", c.GetCaptionModel)
	r.Post("/caption_model", c.SetCaptionModel)

	// Paths used by the bundled web client
	r.Post("/select_chat_model", c.SetChatModel)
	r.Post("/select_image_model", c.SetCaptionModel)
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	reply, err := c.conversation.Ask(ctx.UserContext(), serverutils.SessionID(ctx), req.Message)
	if err != nil {
		return err
	}

	res := &dto.SendMessageResponse{Response: reply, Message: strings.TrimSpace(req.Message)}
	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) UploadImage(ctx *fiber.Ctx) error {
	reqCtx := ctx.UserContext()
	sessionId := serverutils.SessionID(ctx)

	file, err := ctx.FormFile("file")
	if err != nil {
		return apperror.InvalidInput("No file uploaded")
	}
	if file.Filename == "" {
		return apperror.InvalidInput("No file selected")
	}
	if c.conversation.SelectedCharacter(reqCtx, sessionId) == "" {
		return apperror.NoCharacterSelected()
	}

	filename := secureFilename(file.Filename)
	if err := os.MkdirAll(c.uploadDir, 0755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(c.uploadDir, uuid.NewString()+"_"+filename)
	if err := ctx.SaveFile(file, path); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	caption, reply, err := c.conversation.ProcessImage(reqCtx, sessionId, path)
	if err != nil {
		return err
	}

	res := &dto.UploadImageResponse{Caption: caption, Response: reply, Filename: filename}
	return ctx.JSON(serverutils.SuccessResponse("Image processed successfully", res))
}

func (c *chatController) Reset(ctx *fiber.Ctx) error {
	if err := c.conversation.Reset(ctx.UserContext(), serverutils.SessionID(ctx)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Chat reset successfully", nil))
}

func (c *chatController) GetChatModel(ctx *fiber.Ctx) error {
	model := c.conversation.ChatModel(ctx.UserContext(), serverutils.SessionID(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get chat model", &dto.SelectedModelResponse{Model: model}))
}

func (c *chatController) SetChatModel(ctx *fiber.Ctx) error {
	var req dto.SelectModelRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := c.conversation.SelectChatModel(ctx.UserContext(), serverutils.SessionID(ctx), req.Model); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Selected chat model: "+req.Model, &dto.SelectedModelResponse{Model: req.Model}))
}

func (c *chatController) GetCaptionModel(ctx *fiber.Ctx) error {
	model := c.conversation.CaptionModel(ctx.UserContext(), serverutils.SessionID(ctx))
	return ctx.JSON(serverutils.SuccessResponse("Success get caption model", &dto.SelectedModelResponse{Model: model}))
}

func (c *chatController) SetCaptionModel(ctx *fiber.Ctx) error {
	var req dto.SelectModelRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := c.conversation.SelectCaptionModel(ctx.UserContext(), serverutils.SessionID(ctx), req.Model); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Selected caption model: "+req.Model, &dto.SelectedModelResponse{Model: req.Model}))
}

// secureFilename keeps only the base name with a conservative character set.
func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}
