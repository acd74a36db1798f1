package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/auth"
	"github.com/HARSHARORA2812/Vichola/internal/service"
)

// PresenceTracker mirrors the presence store; a nil tracker disables
// presence bookkeeping.
type PresenceTracker interface {
	AddConnection(ctx context.Context, userID, socketID string) error
	RemoveConnection(ctx context.Context, userID, socketID string) error
}

// Router drives the per-connection state machine: a connection starts
// unauthenticated, becomes authenticated once a valid token is presented
// (at connect time or via an authenticate event), and loses all room and
// personal-channel membership on disconnect. Rejections are explicit error
// or authenticated{success:false} events, never silent drops or
// protocol-level disconnects.
type Router struct {
	hub       *Hub
	validator *auth.Validator
	presence  PresenceTracker
	log       *zap.SugaredLogger

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
}

func NewRouter(hub *Hub, validator *auth.Validator, presence PresenceTracker, log *zap.SugaredLogger, pingInterval, writeDeadline time.Duration, maxMsgSize int64) *Router {
	return &Router{
		hub:           hub,
		validator:     validator,
		presence:      presence,
		log:           log,
		pingInterval:  pingInterval,
		writeDeadline: writeDeadline,
		maxMsgSize:    maxMsgSize,
	}
}

// Handle returns the websocket handler for fiber's websocket middleware.
// A token supplied in the upgrade query authenticates the connection
// immediately, matching clients that pass credentials at connect time.
func (r *Router) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := NewClient(uuid.NewString())
		go writePump(conn, client, r.pingInterval, r.writeDeadline)

		if token := conn.Query("token"); token != "" {
			r.authenticate(client, token)
		}

		conn.SetReadLimit(r.maxMsgSize)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				client.enqueue(encodeEvent(EventError, ErrorPayload{Message: "malformed event"}))
				continue
			}
			r.Dispatch(client, ev)
		}

		r.disconnect(client)
		close(client.Send)
	}
}

// Dispatch routes one decoded event through the connection state machine.
func (r *Router) Dispatch(c *Client, ev Event) {
	switch ev.Event {
	case EventAuthenticate:
		var p AuthPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.Token == "" {
			c.enqueue(encodeEvent(EventAuthenticated, AuthResult{Success: false, Error: "no token provided"}))
			return
		}
		r.authenticate(c, p.Token)

	case EventJoinChat:
		if c.UserID == "" {
			c.enqueue(encodeEvent(EventError, ErrorPayload{Message: "not authenticated"}))
			return
		}
		var p JoinPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ThreadID == "" {
			c.enqueue(encodeEvent(EventError, ErrorPayload{Message: "invalid thread id"}))
			return
		}
		r.hub.JoinRoom(p.ThreadID, c)
		c.enqueue(encodeEvent(EventJoinedChat, JoinPayload{ThreadID: p.ThreadID}))

	case EventSendMessage:
		r.handleSend(c, ev)

	case EventTyping:
		r.handleTyping(c, ev)

	default:
		// unknown events are ignored
	}
}

// authenticate is idempotent: a connection may re-present a token after a
// reconnect. Success binds the connection to the user's personal channel.
func (r *Router) authenticate(c *Client, token string) {
	userID, err := r.validator.Validate(token)
	if err != nil {
		c.enqueue(encodeEvent(EventAuthenticated, AuthResult{Success: false, Error: "authentication failed"}))
		return
	}
	c.UserID = userID
	r.hub.RegisterUser(c)
	if r.presence != nil {
		if err := r.presence.AddConnection(context.Background(), userID, c.ID); err != nil {
			r.log.Warnw("presence add", "user", userID, "err", err)
		}
	}
	c.enqueue(encodeEvent(EventAuthenticated, AuthResult{Success: true, UserID: userID}))
}

func (r *Router) handleSend(c *Client, ev Event) {
	if c.UserID == "" {
		c.enqueue(encodeEvent(EventError, ErrorPayload{Message: "not authenticated"}))
		return
	}
	var p SendPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ThreadID == "" || p.Content == "" {
		c.enqueue(encodeEvent(EventError, ErrorPayload{Message: "invalid message data"}))
		return
	}

	out := ReceivePayload{
		ThreadID:      p.ThreadID,
		Content:       p.Content,
		SenderID:      c.UserID,
		ReceiverID:    p.ReceiverID,
		CorrelationID: p.CorrelationID,
		Timestamp:     p.Timestamp,
	}

	// Everyone else in the room gets the message; the sender gets an echo
	// marked fromSelf so multi-tab reconciliation can collapse it.
	r.hub.BroadcastRoom(p.ThreadID, encodeEvent(EventReceiveMsg, out), c)
	out.FromSelf = true
	c.enqueue(encodeEvent(EventReceiveMsg, out))

	// Lightweight heads-up on the receiver's personal channel, covering the
	// case where they have not joined the room.
	if p.ReceiverID != "" {
		r.hub.SendToUser(p.ReceiverID, encodeEvent(EventNotification, NotificationPayload{
			ThreadID: p.ThreadID,
			SenderID: c.UserID,
			Preview:  service.Preview(p.Content),
		}))
	}
}

func (r *Router) handleTyping(c *Client, ev Event) {
	if c.UserID == "" {
		return
	}
	var p TypingPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ThreadID == "" {
		return
	}
	r.hub.BroadcastRoom(p.ThreadID, encodeEvent(EventUserTyping, UserTypingPayload{
		UserID:   c.UserID,
		IsTyping: p.IsTyping,
	}), c)
}

func (r *Router) disconnect(c *Client) {
	r.hub.RemoveClient(c)
	if c.UserID != "" && r.presence != nil {
		if err := r.presence.RemoveConnection(context.Background(), c.UserID, c.ID); err != nil {
			r.log.Warnw("presence remove", "user", c.UserID, "err", err)
		}
	}
}
