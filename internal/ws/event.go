// Package ws implements the realtime channel: a JSON event protocol over
// websocket connections, routed through an in-process hub of rooms and
// per-user personal channels.
package ws

import "encoding/json"

// Event names, client->server and server->client.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventJoinChat      = "join_chat"
	EventJoinedChat    = "joined_chat"
	EventSendMessage   = "send_message"
	EventReceiveMsg    = "receive_message"
	EventNotification  = "new_message_notification"
	EventTyping        = "typing"
	EventUserTyping    = "user_typing"
	EventError         = "error"
)

// Event is the wire envelope for every frame on the channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type AuthResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JoinPayload struct {
	ThreadID string `json:"threadId"`
}

type SendPayload struct {
	ThreadID      string `json:"threadId"`
	Content       string `json:"content"`
	ReceiverID    string `json:"receiverId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

type ReceivePayload struct {
	ThreadID      string `json:"threadId"`
	Content       string `json:"content"`
	SenderID      string `json:"senderId"`
	ReceiverID    string `json:"receiverId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	FromSelf      bool   `json:"fromSelf,omitempty"`
}

type NotificationPayload struct {
	ThreadID string `json:"threadId"`
	SenderID string `json:"senderId"`
	Preview  string `json:"preview"`
}

type TypingPayload struct {
	ThreadID string `json:"threadId"`
	IsTyping bool   `json:"isTyping"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an event frame. Payloads are plain structs, so a
// marshal failure is a programming error; it yields an empty frame rather
// than a panic in the write path.
func encodeEvent(name string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	b, err := json.Marshal(Event{Event: name, Data: data})
	if err != nil {
		return nil
	}
	return b
}
