package chatclient

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names on the realtime channel. Mirrors the server protocol.
const (
	eventAuthenticate  = "authenticate"
	eventAuthenticated = "authenticated"
	eventJoinChat      = "join_chat"
	eventJoinedChat    = "joined_chat"
	eventSendMessage   = "send_message"
	eventReceiveMsg    = "receive_message"
	eventNotification  = "new_message_notification"
	eventTyping        = "typing"
	eventUserTyping    = "user_typing"
	eventError         = "error"
)

// ChannelEvent is one decoded frame from the realtime channel.
type ChannelEvent struct {
	Name string
	Data json.RawMessage
}

// Channel is the realtime transport a Session consumes. The websocket
// implementation below is the production one; tests substitute a stub.
type Channel interface {
	// Emit sends one event; it fails when the channel is not connected.
	Emit(event string, payload any) error
	// Events delivers decoded server events, including "authenticated".
	Events() <-chan ChannelEvent
	// Authenticated reports whether the server has acknowledged the
	// current connection's credential.
	Authenticated() bool
	Close() error
}

var (
	errNotConnected = errors.New("realtime channel not connected")
	errAuthRejected = errors.New("realtime credential rejected")
)

// wsChannel dials the server's websocket endpoint, authenticates in-band
// and reconnects on failure. If no authentication acknowledgment arrives
// within authTimeout the connection is torn down and redialed, so a hung
// handshake never leaves the channel stuck half-open. An explicit
// authenticated{success:false} is a credential failure, not a network
// failure: it invalidates the credential and stops the redial loop.
type wsChannel struct {
	url  string
	auth *AuthContext

	authTimeout    time.Duration
	reconnectDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	authed bool
	closed bool

	events chan ChannelEvent
	done   chan struct{}
}

// DialOptions tune the websocket channel. Zero values use defaults.
type DialOptions struct {
	AuthTimeout    time.Duration // default 5s
	ReconnectDelay time.Duration // default 1s
}

// Dial opens a realtime channel to url (ws:// or wss://, the /v1/ws
// endpoint) and keeps it connected until Close.
func Dial(url string, auth *AuthContext, opts DialOptions) Channel {
	if opts.AuthTimeout == 0 {
		opts.AuthTimeout = 5 * time.Second
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = time.Second
	}
	ch := &wsChannel{
		url:            url,
		auth:           auth,
		authTimeout:    opts.AuthTimeout,
		reconnectDelay: opts.ReconnectDelay,
		events:         make(chan ChannelEvent, 64),
		done:           make(chan struct{}),
	}
	go ch.run()
	return ch
}

func (c *wsChannel) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if err := c.connectOnce(); err != nil {
			if errors.Is(err, errAuthRejected) {
				// retrying with the same rejected credential cannot succeed
				return
			}
			select {
			case <-c.done:
				return
			case <-time.After(c.reconnectDelay):
				continue
			}
		}
	}
}

// connectOnce dials, authenticates and reads until the connection dies.
func (c *wsChannel) connectOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.authed = false
	c.mu.Unlock()

	// Authenticate explicitly after connect; the server answers every
	// authenticate with an authenticated event.
	_ = c.Emit(eventAuthenticate, map[string]string{"token": c.auth.Token()})

	// Bounded wait for the ack: if it never arrives, force a reconnect.
	authTimer := time.AfterFunc(c.authTimeout, func() {
		if !c.Authenticated() {
			_ = conn.Close()
		}
	})
	defer authTimer.Stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.conn = nil
			c.authed = false
			c.mu.Unlock()
			return err
		}
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Event == eventAuthenticated {
			var res struct {
				Success bool `json:"success"`
			}
			_ = json.Unmarshal(frame.Data, &res)
			c.mu.Lock()
			c.authed = res.Success
			c.mu.Unlock()
			if !res.Success {
				c.auth.Invalidate()
				select {
				case c.events <- ChannelEvent{Name: frame.Event, Data: frame.Data}:
				default:
				}
				c.mu.Lock()
				c.conn = nil
				c.mu.Unlock()
				_ = conn.Close()
				return errAuthRejected
			}
		}
		select {
		case c.events <- ChannelEvent{Name: frame.Event, Data: frame.Data}:
		default:
			// consumer lagging, drop; polling repairs anything missed
		}
	}
}

func (c *wsChannel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsChannel) Events() <-chan ChannelEvent { return c.events }

func (c *wsChannel) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
