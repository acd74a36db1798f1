package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/auth"
)

const testSecret = "router-test-secret"

func newTestRouter() (*Router, *Hub) {
	hub := NewHub()
	r := NewRouter(hub, auth.NewValidator(testSecret), nil, zap.NewNop().Sugar(),
		25*time.Second, 10*time.Second, 65536)
	return r, hub
}

func event(t *testing.T, name string, payload any) Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Event{Event: name, Data: data}
}

// nextEvent decodes the next queued frame on the client.
func nextEvent(t *testing.T, c *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case frame := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		return ev.Event, ev.Data
	default:
		t.Fatal("no event queued")
		return "", nil
	}
}

func authedClient(t *testing.T, r *Router, userID string) *Client {
	t.Helper()
	c := NewClient("sock-" + userID)
	token, err := auth.Sign(testSecret, userID, time.Minute)
	require.NoError(t, err)
	r.Dispatch(c, event(t, EventAuthenticate, AuthPayload{Token: token}))

	name, data := nextEvent(t, c)
	require.Equal(t, EventAuthenticated, name)
	var res AuthResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.True(t, res.Success)
	require.Equal(t, userID, res.UserID)
	return c
}

func TestAuthenticateBadToken(t *testing.T) {
	r, _ := newTestRouter()
	c := NewClient("sock")

	r.Dispatch(c, event(t, EventAuthenticate, AuthPayload{Token: "not-a-jwt"}))

	name, data := nextEvent(t, c)
	require.Equal(t, EventAuthenticated, name)
	var res AuthResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
}

func TestJoinRequiresAuth(t *testing.T) {
	r, _ := newTestRouter()
	c := NewClient("sock")

	r.Dispatch(c, event(t, EventJoinChat, JoinPayload{ThreadID: "t1"}))

	name, data := nextEvent(t, c)
	require.Equal(t, EventError, name)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(data, &p))
	require.Equal(t, "not authenticated", p.Message)
}

func TestJoinMissingThreadID(t *testing.T) {
	r, _ := newTestRouter()
	c := authedClient(t, r, "u1")

	r.Dispatch(c, event(t, EventJoinChat, JoinPayload{}))

	name, _ := nextEvent(t, c)
	require.Equal(t, EventError, name)
}

func TestJoinAck(t *testing.T) {
	r, _ := newTestRouter()
	c := authedClient(t, r, "u1")

	r.Dispatch(c, event(t, EventJoinChat, JoinPayload{ThreadID: "t1"}))

	name, data := nextEvent(t, c)
	require.Equal(t, EventJoinedChat, name)
	var p JoinPayload
	require.NoError(t, json.Unmarshal(data, &p))
	require.Equal(t, "t1", p.ThreadID)
}

func TestSendMessageBroadcastEchoAndNotification(t *testing.T) {
	r, _ := newTestRouter()
	sender := authedClient(t, r, "u1")
	peer := authedClient(t, r, "u2")
	for _, c := range []*Client{sender, peer} {
		r.Dispatch(c, event(t, EventJoinChat, JoinPayload{ThreadID: "t1"}))
		nextEvent(t, c) // joined_chat ack
	}

	r.Dispatch(sender, event(t, EventSendMessage, SendPayload{
		ThreadID:      "t1",
		Content:       "Hi!",
		ReceiverID:    "u2",
		CorrelationID: "c-1",
	}))

	// peer: room broadcast without fromSelf, then personal notification
	name, data := nextEvent(t, peer)
	require.Equal(t, EventReceiveMsg, name)
	var got ReceivePayload
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "Hi!", got.Content)
	require.Equal(t, "u1", got.SenderID)
	require.Equal(t, "c-1", got.CorrelationID)
	require.False(t, got.FromSelf)

	name, data = nextEvent(t, peer)
	require.Equal(t, EventNotification, name)
	var note NotificationPayload
	require.NoError(t, json.Unmarshal(data, &note))
	require.Equal(t, "t1", note.ThreadID)
	require.Equal(t, "u1", note.SenderID)
	require.Equal(t, "Hi!", note.Preview)

	// sender: only the fromSelf echo
	name, data = nextEvent(t, sender)
	require.Equal(t, EventReceiveMsg, name)
	var echo ReceivePayload
	require.NoError(t, json.Unmarshal(data, &echo))
	require.True(t, echo.FromSelf)
	require.Empty(t, drain(sender))
}

func TestSendMessageNotificationPreviewTruncated(t *testing.T) {
	r, _ := newTestRouter()
	sender := authedClient(t, r, "u1")
	receiver := authedClient(t, r, "u2") // not in the room

	long := ""
	for i := 0; i < 10; i++ {
		long += "0123456789"
	}
	r.Dispatch(sender, event(t, EventSendMessage, SendPayload{
		ThreadID:   "t1",
		Content:    long,
		ReceiverID: "u2",
	}))
	nextEvent(t, sender) // echo

	name, data := nextEvent(t, receiver)
	require.Equal(t, EventNotification, name)
	var note NotificationPayload
	require.NoError(t, json.Unmarshal(data, &note))
	require.Len(t, note.Preview, 30)
}

func TestSendMessageRequiresAuth(t *testing.T) {
	r, _ := newTestRouter()
	c := NewClient("sock")

	r.Dispatch(c, event(t, EventSendMessage, SendPayload{ThreadID: "t1", Content: "x"}))

	name, _ := nextEvent(t, c)
	require.Equal(t, EventError, name)
}

func TestSendMessageInvalidPayload(t *testing.T) {
	r, _ := newTestRouter()
	c := authedClient(t, r, "u1")

	r.Dispatch(c, event(t, EventSendMessage, SendPayload{ThreadID: "", Content: "x"}))
	name, _ := nextEvent(t, c)
	require.Equal(t, EventError, name)

	r.Dispatch(c, event(t, EventSendMessage, SendPayload{ThreadID: "t1", Content: ""}))
	name, _ = nextEvent(t, c)
	require.Equal(t, EventError, name)
}

func TestTypingBroadcastExcludesSenderAndUnauthedIgnored(t *testing.T) {
	r, _ := newTestRouter()
	sender := authedClient(t, r, "u1")
	peer := authedClient(t, r, "u2")
	for _, c := range []*Client{sender, peer} {
		r.Dispatch(c, event(t, EventJoinChat, JoinPayload{ThreadID: "t1"}))
		nextEvent(t, c)
	}

	r.Dispatch(sender, event(t, EventTyping, TypingPayload{ThreadID: "t1", IsTyping: true}))

	name, data := nextEvent(t, peer)
	require.Equal(t, EventUserTyping, name)
	var p UserTypingPayload
	require.NoError(t, json.Unmarshal(data, &p))
	require.Equal(t, "u1", p.UserID)
	require.True(t, p.IsTyping)
	require.Empty(t, drain(sender), "sender does not hear their own typing")

	// unauthenticated typing is dropped silently, no error event
	stranger := NewClient("sock-x")
	r.Dispatch(stranger, event(t, EventTyping, TypingPayload{ThreadID: "t1", IsTyping: true}))
	require.Empty(t, drain(stranger))
	require.Empty(t, drain(peer))
}

func TestMultiTabEchoReachesOnlyOriginatingConnection(t *testing.T) {
	r, _ := newTestRouter()
	tab1 := authedClient(t, r, "u1")
	tab2 := authedClient(t, r, "u1")
	for _, c := range []*Client{tab1, tab2} {
		r.Dispatch(c, event(t, EventJoinChat, JoinPayload{ThreadID: "t1"}))
		nextEvent(t, c)
	}

	r.Dispatch(tab1, event(t, EventSendMessage, SendPayload{ThreadID: "t1", Content: "hi"}))

	_, data := nextEvent(t, tab1)
	var echo ReceivePayload
	require.NoError(t, json.Unmarshal(data, &echo))
	require.True(t, echo.FromSelf)

	_, data = nextEvent(t, tab2)
	var other ReceivePayload
	require.NoError(t, json.Unmarshal(data, &other))
	require.False(t, other.FromSelf, "the second tab sees a plain room broadcast")
}
