package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/gofiber/websocket/v2"
)

// WireConn is the subset of *websocket.Conn the gateway drives.
type WireConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// CredentialVerifier resolves a bearer credential to an existing user.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) (uint, error)
}

type GatewayConfig struct {
	AuthTimeout  time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = 3 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Gateway terminates realtime connections: one-time authentication, the
// inbound event loop, and the per-connection write pump.
type Gateway struct {
	registry  *Registry
	auth      CredentialVerifier
	authority GroupAuthority
	cfg       GatewayConfig
	log       *slog.Logger
}

func NewGateway(registry *Registry, auth CredentialVerifier, authority GroupAuthority, cfg GatewayConfig) *Gateway {
	return &Gateway{
		registry:  registry,
		auth:      auth,
		authority: authority,
		cfg:       cfg.withDefaults(),
		log:       slog.Default().With("component", "ws"),
	}
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleWebSocket is the fiber websocket entrypoint. A userID local set by
// the upgrade middleware skips the auth frame.
func (g *Gateway) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(uint)
	g.Serve(c, userID)
}

// Serve runs one connection until it closes. userID is zero when the
// handshake carried no credential.
func (g *Gateway) Serve(conn WireConn, userID uint) {
	ctx := context.Background()

	if userID == 0 {
		id, err := g.authenticate(ctx, conn)
		if err != nil {
			g.log.InfoContext(ctx, "ws: authentication failed", "err", err)
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.TextMessage, errorFrame(err, MsgAuth, ""))
			_ = conn.Close()
			return
		}
		userID = id
	}

	client := g.registry.NewClient(userID)
	if frame, err := encodeFrame(TypeReady, map[string]interface{}{
		"user_id":       userID,
		"connection_id": client.ID,
		"online_users":  g.registry.OnlineUsers(),
	}, ""); err == nil {
		client.Enqueue(frame)
	}
	first, err := g.registry.Register(client)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, errorFrame(errs.Unavailable("server is shutting down", err), "", ""))
		_ = conn.Close()
		return
	}
	log := g.log.With("user_id", userID, "conn_id", client.ID)
	log.InfoContext(ctx, "ws: connected", "first", first)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		g.writePump(conn, client, log)
	}()

	if first {
		_ = g.registry.BroadcastExcept(client, statusEvent(userID, "online"))
	}

	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		g.registry.RefreshPresence(userID)
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})

	g.readLoop(ctx, conn, client, log)

	last := g.registry.Unregister(client)
	<-pumpDone
	_ = conn.Close()
	if last {
		_ = g.registry.BroadcastExcept(nil, statusEvent(userID, "offline"))
	}
	log.InfoContext(ctx, "ws: disconnected", "last", last, "dropped", client.Dropped())
}

// authenticate waits AuthTimeout for an auth frame.
func (g *Gateway) authenticate(ctx context.Context, conn WireConn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.AuthTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, errs.Wrap(errs.CodeUnauthenticated, "authentication timeout", err)
	}
	msg, _, err := Deserialize(data)
	if err != nil {
		return 0, errs.Wrap(errs.CodeUnauthenticated, "expected auth frame", err)
	}
	auth, ok := msg.(*MessageAuth)
	if !ok {
		return 0, errs.Unauthenticated("expected auth frame")
	}

	vctx, cancel := context.WithTimeout(ctx, g.cfg.AuthTimeout)
	defer cancel()
	return g.auth.VerifyCredential(vctx, auth.Token)
}

func (g *Gateway) readLoop(ctx context.Context, conn WireConn, client *Client, log *slog.Logger) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			log.DebugContext(ctx, "ws: read ended", "err", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))

		if g.cfg.Debug {
			log.DebugContext(ctx, "ws_recv", "frame_type", messageType, "size", len(data))
		}
		if messageType != websocket.TextMessage {
			SendError(client, errs.InvalidArgument("only text frames are accepted"), "", "")
			continue
		}

		msg, wrapper, err := Deserialize(data)
		if err != nil {
			var requestType, requestID string
			if wrapper != nil {
				requestType, requestID = wrapper.Type, wrapper.RequestID
			}
			log.WarnContext(ctx, "ws: dropped malformed frame", "request_type", requestType, "err", err)
			SendError(client, err, requestType, requestID)
			continue
		}

		ectx := &EventContext{
			Ctx:       ctx,
			Client:    client,
			Registry:  g.registry,
			Authority: g.authority,
			RequestID: wrapper.RequestID,
			Logger:    log,
		}
		if err := msg.Process(ectx); err != nil {
			log.InfoContext(ctx, "ws: event rejected", "request_type", msg.GetType(), "code", errs.CodeOf(err), "err", err)
			SendError(client, err, msg.GetType(), wrapper.RequestID)
		}
	}
}

// writePump is the only writer on conn after registration.
func (g *Gateway) writePump(conn WireConn, client *Client, log *slog.Logger) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case frame := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("ws: write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout)); err != nil {
				log.Debug("ws: ping failed", "err", err)
				return
			}
		case <-client.done:
			g.drain(conn, client)
			return
		}
	}
}

// drain flushes frames queued before close, e.g. an eviction notice.
func (g *Gateway) drain(conn WireConn, client *Client) {
	for {
		select {
		case frame := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
