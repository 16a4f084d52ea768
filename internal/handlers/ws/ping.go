package ws

// MessagePing is an application-level keepalive from the client
type MessagePing struct {
}

func (msg *MessagePing) GetType() string {
	return "ping"
}

func (msg *MessagePing) Process(ctx *EventContext) error {
	return ctx.Reply("pong", struct{}{})
}
