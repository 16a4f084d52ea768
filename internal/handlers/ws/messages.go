package ws

import (
	"errors"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/Success-Framework/SFManagers-sub001/internal/validation"
)

const (
	MsgAuth         = "auth"
	MsgJoinGroup    = "join-group"
	MsgLeaveGroup   = "leave-group"
	MsgTypingDirect = "typing-direct"
	MsgTypingGroup  = "typing-group"
	MsgStatusUpdate = "status-update"
)

// MessageAuth carries the credential when the handshake did not.
type MessageAuth struct {
	Token string `json:"token"`
}

func (msg *MessageAuth) GetType() string {
	return MsgAuth
}

func (msg *MessageAuth) Process(ctx *EventContext) error {
	return errs.InvalidArgument("connection is already authenticated")
}

// MessageJoinGroup subscribes the connection to a group room.
type MessageJoinGroup struct {
	GroupID uint `json:"group_id"`
}

func (msg *MessageJoinGroup) GetType() string {
	return MsgJoinGroup
}

// Process re-checks membership on every join; earlier joins grant nothing.
func (msg *MessageJoinGroup) Process(ctx *EventContext) error {
	if msg.GroupID == 0 {
		return errs.InvalidArgument("group_id is required")
	}
	room := service.GroupRoom(msg.GroupID)
	grant := ctx.Registry.RoomGrant(ctx.Client.UserID, room)
	ok, err := ctx.Authority.CanReadGroup(ctx.Ctx, ctx.Client.UserID, msg.GroupID)
	if err != nil {
		ctx.Logger.WarnContext(ctx.Ctx, "ws: membership check failed", "group_id", msg.GroupID, "err", err)
		if errs.CodeOf(err) == errs.CodeUnknown {
			return errs.Unavailable("membership check failed", err)
		}
		return err
	}
	if !ok {
		return errs.Forbidden("not a member of this group")
	}
	if err := ctx.Registry.JoinRoomWithGrant(ctx.Client, room, grant); err != nil {
		if errors.Is(err, ErrEvicted) {
			return errs.Forbidden("not a member of this group")
		}
		return errs.Unavailable("join failed", err)
	}
	return ctx.Reply(TypeJoinedGroup, map[string]uint{"group_id": msg.GroupID})
}

type MessageLeaveGroup struct {
	GroupID uint `json:"group_id"`
}

func (msg *MessageLeaveGroup) GetType() string {
	return MsgLeaveGroup
}

func (msg *MessageLeaveGroup) Process(ctx *EventContext) error {
	if msg.GroupID == 0 {
		return errs.InvalidArgument("group_id is required")
	}
	ctx.Registry.LeaveRoom(ctx.Client, service.GroupRoom(msg.GroupID))
	return ctx.Reply(TypeLeftGroup, map[string]interface{}{
		"group_id": msg.GroupID,
		"reason":   "requested",
	})
}

// MessageTypingDirect is relayed to the peer's personal room only.
type MessageTypingDirect struct {
	UserID uint `json:"user_id"`
	Typing bool `json:"typing"`
}

func (msg *MessageTypingDirect) GetType() string {
	return MsgTypingDirect
}

func (msg *MessageTypingDirect) Process(ctx *EventContext) error {
	if msg.UserID == 0 || msg.UserID == ctx.Client.UserID {
		return errs.InvalidArgument("invalid typing target")
	}
	return ctx.Registry.PushToRooms([]string{service.UserRoom(msg.UserID)}, eventOf(service.EventTypingDirect, map[string]interface{}{
		"user_id": ctx.Client.UserID,
		"typing":  msg.Typing,
	}))
}

// MessageTypingGroup requires the connection to be in the group room, which
// implies a membership check at join time.
type MessageTypingGroup struct {
	GroupID uint `json:"group_id"`
	Typing  bool `json:"typing"`
}

func (msg *MessageTypingGroup) GetType() string {
	return MsgTypingGroup
}

func (msg *MessageTypingGroup) Process(ctx *EventContext) error {
	room := service.GroupRoom(msg.GroupID)
	if msg.GroupID == 0 || !ctx.Registry.InRoom(ctx.Client, room) {
		return errs.Forbidden("join the group before sending typing indicators")
	}
	return ctx.Registry.pushExcept([]string{room}, eventOf(service.EventTypingGroup, map[string]interface{}{
		"group_id": msg.GroupID,
		"user_id":  ctx.Client.UserID,
		"typing":   msg.Typing,
	}), ctx.Client)
}

// MessageStatusUpdate announces a free-form status to every other connection.
type MessageStatusUpdate struct {
	Status string `json:"status"`
}

func (msg *MessageStatusUpdate) GetType() string {
	return MsgStatusUpdate
}

func (msg *MessageStatusUpdate) Process(ctx *EventContext) error {
	status, err := validation.Status(msg.Status)
	if err != nil {
		return err
	}
	ctx.Registry.SetStatus(ctx.Client.UserID, status)
	return ctx.Registry.BroadcastExcept(ctx.Client, statusEvent(ctx.Client.UserID, status))
}

func statusEvent(userID uint, status string) service.Event {
	return eventOf(service.EventUserStatus, map[string]interface{}{
		"user_id": userID,
		"status":  status,
	})
}
