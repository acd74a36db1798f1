// Package api wires the fiber application: bearer-protected thread
// endpoints, the websocket upgrade route and health.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/auth"
	"github.com/HARSHARORA2812/Vichola/internal/presence"
	"github.com/HARSHARORA2812/Vichola/internal/service"
	"github.com/HARSHARORA2812/Vichola/internal/ws"
)

func NewServer(svc *service.ChatService, validator *auth.Validator, router *ws.Router, pres *presence.Store, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return respondOK(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	})

	// The realtime channel authenticates in-band (query token or
	// authenticate event), so the upgrade route sits outside the bearer
	// middleware.
	app.Get("/v1/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/v1/ws", fiberws.New(router.Handle()))

	h := NewHandlers(svc, pres, log)
	v1 := app.Group("/v1", bearerMiddleware(validator))
	v1.Get("/threads", h.listThreads)
	v1.Get("/thread/:peerId", h.getThread)
	v1.Post("/thread/:peerId", h.postMessage)
	v1.Get("/presence/:userId", h.getPresence)

	return app
}

// bearerMiddleware validates the Authorization header and stores the
// caller's identity in locals. Missing, malformed and expired tokens all
// yield 401 so clients can distinguish auth failures from network errors.
func bearerMiddleware(validator *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return respondErr(c, fiber.StatusUnauthorized, err.Error())
		}
		userID, err := validator.Validate(token)
		if err != nil {
			return respondErr(c, fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
