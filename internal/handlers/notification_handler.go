package handlers

import (
	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	items, err := h.notifications.List(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": items, "count": len(items)})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	count, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, id, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	n, err := h.notifications.MarkRead(c.UserContext(), userID, id)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(n)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	updated, err := h.notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, id, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.notifications.Delete(c.UserContext(), userID, id); err != nil {
		return httpx.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	deleted, err := h.notifications.DeleteAll(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
