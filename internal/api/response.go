package api

import "github.com/gofiber/fiber/v2"

// Envelope is the single response shape for every endpoint. Clients
// normalize on it once at their HTTP boundary and never branch on shape
// deeper in.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func respondOK(c *fiber.Ctx, code int, data any) error {
	return c.Status(code).JSON(Envelope{Status: "ok", Data: data})
}

func respondErr(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(Envelope{Status: "error", Error: msg})
}
