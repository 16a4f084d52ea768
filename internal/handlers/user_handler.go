package handlers

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Success-Framework/SFManagers-sub001/internal/httpx"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/gofiber/fiber/v2"
)

// PresenceReader exposes live presence for profile lookups.
type PresenceReader interface {
	IsOnline(userID uint) bool
	Status(userID uint) string
	OnlineUsers() []uint
}

// ClusterPresence reads the presence mirror shared by every gateway process.
// It covers users connected to another instance.
type ClusterPresence interface {
	IsUserOnline(ctx context.Context, userID uint) bool
	GetOnlineUsers(ctx context.Context) ([]uint, error)
}

type UserHandler struct {
	users    service.UserDirectory
	presence PresenceReader
	cluster  ClusterPresence
}

// NewUserHandler accepts a nil cluster; presence is then process-local.
func NewUserHandler(users service.UserDirectory, presence PresenceReader, cluster ClusterPresence) *UserHandler {
	return &UserHandler{users: users, presence: presence, cluster: cluster}
}

// GetUser returns a user's display summary and live presence.
// Route: GET /users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	if _, _, err := caller(c, false); err != nil {
		return httpx.FromError(c, err)
	}
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	summary, err := h.users.Summary(c.UserContext(), id)
	if err != nil {
		return httpx.FromError(c, err)
	}

	online, status := h.presence.IsOnline(id), h.presence.Status(id)
	if !online && h.cluster != nil && h.cluster.IsUserOnline(c.UserContext(), id) {
		// Connected elsewhere; the status text lives on that instance.
		online, status = true, "online"
	}

	c.Set("Cache-Control", "private, max-age=0, must-revalidate")
	return c.JSON(fiber.Map{
		"user":   summary,
		"online": online,
		"status": status,
	})
}

// ListOnline returns the ids of every connected user, local or mirrored.
// Route: GET /users/online
func (h *UserHandler) ListOnline(c *fiber.Ctx) error {
	if _, _, err := caller(c, false); err != nil {
		return httpx.FromError(c, err)
	}

	seen := make(map[uint]struct{})
	for _, id := range h.presence.OnlineUsers() {
		seen[id] = struct{}{}
	}
	if h.cluster != nil {
		remote, err := h.cluster.GetOnlineUsers(c.UserContext())
		if err != nil {
			slog.WarnContext(c.UserContext(), "presence mirror read failed", "err", err)
		}
		for _, id := range remote {
			seen[id] = struct{}{}
		}
	}

	users := make([]uint, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	c.Set("Cache-Control", "private, max-age=0, must-revalidate")
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}
