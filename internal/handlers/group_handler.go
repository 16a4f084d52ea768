package handlers

import (
	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	messaging *service.MessagingService
}

func NewGroupHandler(messaging *service.MessagingService) *GroupHandler {
	return &GroupHandler{messaging: messaging}
}

type AddMemberRequest struct {
	UserID  uint `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// caller resolves the authenticated user and, when withGroup is set, the :id
// route parameter.
func caller(c *fiber.Ctx, withGroup bool) (userID, groupID uint, err error) {
	userID, err = httpx.LocalUint(c, "userID")
	if err != nil {
		return 0, 0, errs.Unauthenticated("Unauthorized")
	}
	if withGroup {
		groupID, err = httpx.ParamUint(c, "id")
		if err != nil {
			return 0, 0, err
		}
	}
	return userID, groupID, nil
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req service.CreateGroupInput
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, err := h.messaging.CreateGroup(c.UserContext(), userID, req)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, _, err := caller(c, false)
	if err != nil {
		return httpx.FromError(c, err)
	}

	groups, err := h.messaging.ListGroups(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{"groups": groups})
}

// GetGroupMessages returns messages after the since cursor and marks them
// read for the caller.
func (h *GroupHandler) GetGroupMessages(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}
	since, err := httpx.QueryUint(c, "since")
	if err != nil {
		return httpx.FromError(c, err)
	}

	messages, err := h.messaging.FetchGroup(c.UserContext(), userID, groupID, since, c.QueryInt("limit", 0))
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

func (h *GroupHandler) SendGroupMessage(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	var input service.SendGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messaging.SendGroup(c.UserContext(), userID, groupID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

func (h *GroupHandler) DeleteGroupMessage(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}
	messageID, err := httpx.ParamUint(c, "mid")
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.messaging.DeleteGroupMessage(c.UserContext(), userID, groupID, messageID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GroupHandler) GetReceipts(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}
	messageID, err := httpx.ParamUint(c, "mid")
	if err != nil {
		return httpx.FromError(c, err)
	}

	receipts, err := h.messaging.GroupReceipts(c.UserContext(), userID, groupID, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"receipts": receipts})
}

func (h *GroupHandler) UnreadCount(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	count, err := h.messaging.UnreadGroup(c.UserContext(), userID, groupID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"group_id": groupID, "unread_count": count})
}

func (h *GroupHandler) GetGroupMembers(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	members, err := h.messaging.ListMembers(c.UserContext(), userID, groupID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"members": members})
}

func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if req.UserID == 0 {
		return httpx.BadRequest(c, "missing_user", "user_id is required")
	}

	added, err := h.messaging.AddMember(c.UserContext(), userID, groupID, req.UserID, req.IsAdmin)
	if err != nil {
		return httpx.FromError(c, err)
	}

	status := fiber.StatusOK
	if added {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"added": added})
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}
	memberID, err := httpx.ParamUint(c, "uid")
	if err != nil {
		return httpx.FromError(c, err)
	}

	removed, err := h.messaging.RemoveMember(c.UserContext(), userID, groupID, memberID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *GroupHandler) SetAdmin(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}
	memberID, err := httpx.ParamUint(c, "uid")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req SetAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.messaging.SetAdmin(c.UserContext(), userID, groupID, memberID, req.IsAdmin); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"user_id": memberID, "is_admin": req.IsAdmin})
}

func (h *GroupHandler) LeaveGroup(c *fiber.Ctx) error {
	userID, groupID, err := caller(c, true)
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.messaging.Leave(c.UserContext(), userID, groupID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left group successfully"})
}

// ProjectChannel returns the team channel of a project, creating it on first
// request.
func (h *GroupHandler) ProjectChannel(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	projectID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req service.CreateGroupInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
		}
	}

	group, created, err := h.messaging.ProjectChannel(c.UserContext(), userID, projectID, req)
	if err != nil {
		return httpx.FromError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"group": group, "created": created})
}
