package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/presence"
	"github.com/HARSHARORA2812/Vichola/internal/service"
)

type Handlers struct {
	svc      *service.ChatService
	presence *presence.Store
	log      *zap.SugaredLogger
}

func NewHandlers(svc *service.ChatService, pres *presence.Store, log *zap.SugaredLogger) *Handlers {
	return &Handlers{svc: svc, presence: pres, log: log}
}

// getThread returns the caller's thread with peerId, creating an empty one
// on first contact. The returned id is stable across repeated calls.
func (h *Handlers) getThread(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	peerID := c.Params("peerId")
	if peerID == "" || peerID == userID {
		return respondErr(c, fiber.StatusBadRequest, "invalid user ID")
	}

	t, err := h.svc.GetOrCreateThread(c.Context(), userID, peerID)
	if err != nil {
		h.log.Errorw("get thread", "user", userID, "peer", peerID, "err", err)
		return respondErr(c, fiber.StatusInternalServerError, "failed to fetch chat")
	}
	return respondOK(c, fiber.StatusOK, t)
}

// postMessage appends to the thread with peerId (creating it if needed)
// and returns the full updated thread.
func (h *Handlers) postMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	peerID := c.Params("peerId")
	if peerID == "" || peerID == userID {
		return respondErr(c, fiber.StatusBadRequest, "invalid user ID")
	}

	var body struct {
		Content       string `json:"content"`
		CorrelationID string `json:"correlationId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondErr(c, fiber.StatusBadRequest, "invalid body")
	}

	t, err := h.svc.AppendMessage(c.Context(), userID, peerID, body.Content, body.CorrelationID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyContent) {
			return respondErr(c, fiber.StatusBadRequest, err.Error())
		}
		h.log.Errorw("append message", "user", userID, "peer", peerID, "err", err)
		return respondErr(c, fiber.StatusInternalServerError, "failed to send message")
	}
	return respondOK(c, fiber.StatusCreated, t)
}

// listThreads returns the caller's conversations, most recent first.
func (h *Handlers) listThreads(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	out, err := h.svc.ListThreads(c.Context(), userID)
	if err != nil {
		h.log.Errorw("list threads", "user", userID, "err", err)
		return respondErr(c, fiber.StatusInternalServerError, "failed to fetch chats")
	}
	return respondOK(c, fiber.StatusOK, out)
}

func (h *Handlers) getPresence(c *fiber.Ctx) error {
	if h.presence == nil {
		return respondErr(c, fiber.StatusNotFound, "presence disabled")
	}
	p, err := h.presence.Get(c.Context(), c.Params("userId"))
	if err != nil {
		return respondErr(c, fiber.StatusInternalServerError, "failed to fetch presence")
	}
	return respondOK(c, fiber.StatusOK, p)
}
