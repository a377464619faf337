package serverutils

import (
	"errors"

	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindAlreadyExists, apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindProtected:
		return fiber.StatusForbidden
	case apperror.KindNoCharacterSelected:
		return fiber.StatusUnprocessableEntity
	case apperror.KindInvalidInput:
		return fiber.StatusBadRequest
	case apperror.KindUpstreamFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the fiber.Config ErrorHandler. Every failure leaves as an
// ErrorBody with success=false.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			log.Error("HTTP", "Unhandled error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
			return ctx.Status(fiber.StatusInternalServerError).
				JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
		}

		status := StatusFor(appErr.Kind)
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", appErr.Message, map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"kind":   string(appErr.Kind),
				"error":  err.Error(),
			})
		}

		body := ErrorResponse(status, appErr.Message)
		body.ErrorType = string(appErr.Kind)
		return ctx.Status(status).JSON(body)
	}
}

// ErrorHandlerMiddleware runs the handler chain and renders any returned
// error in place, so group-level middleware sees a finished response.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	handle := ErrorHandler(log)
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return handle(ctx, err)
		}
		return nil
	}
}
