package serverutils

import (
	"time"

	"ollama-chat-be/internal/constant"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const sessionCookieMaxAge = 30 * 24 * time.Hour

// SessionMiddleware resolves the caller's session id from the header or the
// cookie, minting a new one (and setting the cookie) when neither is valid.
func SessionMiddleware(ctx *fiber.Ctx) error {
	sessionId := ctx.Get(constant.SessionHeaderName)
	if sessionId == "" {
		sessionId = ctx.Cookies(constant.SessionCookieName)
	}

	if _, err := uuid.Parse(sessionId); err != nil {
		sessionId = uuid.NewString()
		ctx.Cookie(&fiber.Cookie{
			Name:     constant.SessionCookieName,
			Value:    sessionId,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Now().Add(sessionCookieMaxAge),
		})
	}

	ctx.Set(constant.SessionHeaderName, sessionId)
	ctx.Locals(constant.SessionLocalsKey, sessionId)
	return ctx.Next()
}

// SessionID reads the id stored by SessionMiddleware.
func SessionID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(constant.SessionLocalsKey).(string)
	return id
}
