package handlers

import (
	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messaging *service.MessagingService
}

func NewMessageHandler(messaging *service.MessagingService) *MessageHandler {
	return &MessageHandler{messaging: messaging}
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.SendDirectInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if input.ReceiverID == 0 {
		return httpx.BadRequest(c, "missing_receiver", "receiver_id is required")
	}

	message, err := h.messaging.SendDirect(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// GetMessages returns the conversation with peer_id, oldest first. after is
// an exclusive id cursor.
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerID, err := httpx.QueryUint(c, "peer_id")
	if err != nil {
		return httpx.FromError(c, err)
	}
	if peerID == 0 {
		return httpx.BadRequest(c, "missing_peer", "peer_id is required")
	}
	afterID, err := httpx.QueryUint(c, "after")
	if err != nil {
		return httpx.FromError(c, err)
	}

	messages, err := h.messaging.FetchDirect(c.UserContext(), userID, peerID, afterID, c.QueryInt("limit", 50))
	if err != nil {
		return httpx.FromError(c, err)
	}

	result := fiber.Map{
		"messages": messages,
		"count":    len(messages),
	}
	if len(messages) > 0 {
		result["next_cursor"] = messages[len(messages)-1].ID
	}
	return c.JSON(result)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	message, err := h.messaging.MarkDirectRead(c.UserContext(), userID, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"id":      message.ID,
		"read":    message.Read,
		"read_at": message.ReadAt,
	})
}

func (h *MessageHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	peerID, err := httpx.ParamUint(c, "peer_id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	updated, err := h.messaging.MarkConversationRead(c.UserContext(), userID, peerID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{"updated": updated})
}

func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.messaging.DeleteDirect(c.UserContext(), userID, messageID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnreadCount returns the direct unread total, or the count from one peer
// when peer_id is given.
func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	peerID, err := httpx.QueryUint(c, "peer_id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var count int64
	if peerID != 0 {
		if peerID == userID {
			return httpx.FromError(c, errs.InvalidArgument("peer_id must differ from the caller"))
		}
		count, err = h.messaging.UnreadDirectFrom(c.UserContext(), userID, peerID)
	} else {
		count, err = h.messaging.UnreadDirect(c.UserContext(), userID)
	}
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}
