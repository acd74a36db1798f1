package chatclient

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreAPI is the slice of the HTTP client a Session consumes.
type StoreAPI interface {
	GetThread(ctx context.Context, peerID string) (*Thread, error)
	SendMessage(ctx context.Context, peerID, content, correlationID string) (*Thread, error)
}

// SessionOptions tune a conversation session. Zero values use defaults.
type SessionOptions struct {
	PollInterval  time.Duration // full-thread refetch cadence, default 30s
	RecencyWindow time.Duration // pending-match window, default 60s
	// OnUpdate fires after every change to the merged view.
	OnUpdate func()
	// OnNotification fires for new_message_notification events arriving on
	// the personal channel (other conversations).
	OnNotification func(threadID, senderID, preview string)
}

// Session is the single source of truth for one open conversation. It
// reconciles the authoritative store fetch, local optimistic inserts and
// realtime pushes into one ordered, de-duplicated view.
// Persistence is authoritative: any disagreement with the realtime path is
// resolved in favor of what the store reports.
type Session struct {
	api    StoreAPI
	ch     Channel // may be nil: HTTP-only fallback mode
	auth   *AuthContext
	peerID string

	opts SessionOptions

	mu         sync.Mutex
	threadID   string
	joined     bool
	byCorr     map[string]*LocalMessage
	seenServer map[string]struct{}
	msgs       []*LocalMessage
	peerTyping bool

	done     chan struct{}
	stopOnce sync.Once
}

func NewSession(api StoreAPI, ch Channel, auth *AuthContext, peerID string, opts SessionOptions) *Session {
	if opts.PollInterval == 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.RecencyWindow == 0 {
		opts.RecencyWindow = time.Minute
	}
	return &Session{
		api:        api,
		ch:         ch,
		auth:       auth,
		peerID:     peerID,
		opts:       opts,
		byCorr:     make(map[string]*LocalMessage),
		seenServer: make(map[string]struct{}),
		done:       make(chan struct{}),
	}
}

// Open performs the initial authoritative fetch, joins the realtime room
// once possible and starts the polling and event loops. The error reflects
// only the initial fetch; the loops keep running either way so realtime
// delivery and later polls can still repair a failed load.
func (s *Session) Open(ctx context.Context) error {
	err := s.fetch(ctx)

	if s.ch != nil {
		go s.eventLoop()
	}
	go s.pollLoop(ctx)
	return err
}

// Close stops the session's loops. The realtime channel is owned by the
// caller and is not closed here.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

// ThreadID returns the persisted thread id, or "" before the first
// successful fetch or send.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Messages returns the merged view, chronologically ordered. Pending
// entries hold their insertion position until resolved: their timestamp is
// the insertion time and is only replaced by the server's once delivered.
func (s *Session) Messages() []LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LocalMessage, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = *m
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// PeerTyping reports the last typing signal received from the peer.
func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// Send validates, inserts a Pending entry immediately and then delivers:
// a realtime emit when the channel is ready (latency), and the HTTP append
// always (durability). It returns the correlation id identifying the
// message for Retry, and the delivery error if persistence failed.
func (s *Session) Send(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}

	corrID := uuid.NewString()
	entry := &LocalMessage{
		CorrelationID: corrID,
		Sender:        s.auth.UserID(),
		Content:       content,
		Timestamp:     time.Now().UTC(),
		State:         StatePending,
	}

	s.mu.Lock()
	s.byCorr[corrID] = entry
	s.msgs = append(s.msgs, entry)
	s.mu.Unlock()
	s.notify()

	return corrID, s.deliver(ctx, entry)
}

// Retry re-runs delivery for a Pending or Failed message. The correlation
// id is unchanged, so a successful retry supersedes the failed entry
// instead of duplicating it.
func (s *Session) Retry(ctx context.Context, correlationID string) error {
	s.mu.Lock()
	entry, ok := s.byCorr[correlationID]
	if !ok || entry.State == StateDelivered {
		s.mu.Unlock()
		return nil
	}
	entry.State = StatePending
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, entry)
}

// EmitTyping forwards a typing signal to the room. Best effort; dropped
// when the channel is absent or not ready.
func (s *Session) EmitTyping(isTyping bool) {
	s.mu.Lock()
	threadID := s.threadID
	s.mu.Unlock()
	if s.ch == nil || !s.ch.Authenticated() || threadID == "" {
		return
	}
	_ = s.ch.Emit(eventTyping, map[string]any{"threadId": threadID, "isTyping": isTyping})
}

// deliver pushes the entry over the realtime channel when possible, then
// persists it. The realtime path is a latency optimization only; the store
// decides the message's fate.
func (s *Session) deliver(ctx context.Context, entry *LocalMessage) error {
	s.mu.Lock()
	threadID := s.threadID
	content := entry.Content
	corrID := entry.CorrelationID
	s.mu.Unlock()

	if s.ch != nil && s.ch.Authenticated() && threadID != "" {
		_ = s.ch.Emit(eventSendMessage, map[string]any{
			"threadId":      threadID,
			"content":       content,
			"receiverId":    s.peerID,
			"correlationId": corrID,
			"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	t, err := s.api.SendMessage(ctx, s.peerID, content, corrID)
	if err != nil {
		s.mu.Lock()
		entry.State = StateFailed
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.absorb(t)
	s.tryJoin()
	return nil
}

// fetch pulls the full authoritative thread and reconciles it in.
func (s *Session) fetch(ctx context.Context) error {
	t, err := s.api.GetThread(ctx, s.peerID)
	if err != nil {
		return err
	}
	s.absorb(t)
	s.tryJoin()
	return nil
}

// absorb reconciles an authoritative thread snapshot: idempotent, so
// polling never duplicates.
func (s *Session) absorb(t *Thread) {
	s.mu.Lock()
	if s.threadID == "" {
		s.threadID = t.ID
	}
	changed := false
	for i := range t.Messages {
		if s.reconcileLocked(t.Messages[i]) {
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// reconcileLocked merges one server-reported message into the local
// buffer. Matching precedence: correlation id, then server id (already
// seen), then a Pending entry with the same sender and content inside the
// recency window. Anything unmatched is appended as Delivered.
func (s *Session) reconcileLocked(in Message) bool {
	if in.CorrelationID != "" {
		if entry, ok := s.byCorr[in.CorrelationID]; ok {
			return s.upgradeLocked(entry, in)
		}
	}
	if in.ID != "" {
		if _, ok := s.seenServer[in.ID]; ok {
			return false
		}
	}
	for _, entry := range s.msgs {
		// Candidates: unresolved optimistic entries, plus realtime-pushed
		// copies that the store has not yet confirmed with an id.
		if entry.State == StateDelivered && entry.ServerID != "" {
			continue
		}
		if entry.Sender == in.Sender && entry.Content == in.Content &&
			absDuration(time.Since(entry.Timestamp)) <= s.opts.RecencyWindow {
			return s.upgradeLocked(entry, in)
		}
	}

	entry := &LocalMessage{
		CorrelationID: in.CorrelationID,
		ServerID:      in.ID,
		Sender:        in.Sender,
		Content:       in.Content,
		Timestamp:     in.Timestamp,
		State:         StateDelivered,
	}
	if in.CorrelationID != "" {
		s.byCorr[in.CorrelationID] = entry
	}
	if in.ID != "" {
		s.seenServer[in.ID] = struct{}{}
	}
	s.msgs = append(s.msgs, entry)
	return true
}

// upgradeLocked resolves an optimistic entry in place with the
// authoritative copy's id and timestamp.
func (s *Session) upgradeLocked(entry *LocalMessage, in Message) bool {
	changed := entry.State != StateDelivered
	entry.State = StateDelivered
	if in.ID != "" && entry.ServerID == "" {
		entry.ServerID = in.ID
		s.seenServer[in.ID] = struct{}{}
		changed = true
	}
	if !in.Timestamp.IsZero() {
		entry.Timestamp = in.Timestamp
	}
	return changed
}

// tryJoin joins the realtime room once both conditions hold: the channel
// is authenticated and the thread id is known, whichever happens later.
func (s *Session) tryJoin() {
	s.mu.Lock()
	threadID := s.threadID
	joined := s.joined
	s.mu.Unlock()

	if joined || threadID == "" || s.ch == nil || !s.ch.Authenticated() {
		return
	}
	_ = s.ch.Emit(eventJoinChat, map[string]string{"threadId": threadID})
}

func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed poll just skips this cycle; the next tick retries.
			_ = s.fetch(ctx)
		}
	}
}

func (s *Session) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.ch.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev ChannelEvent) {
	switch ev.Name {
	case eventAuthenticated:
		s.tryJoin()

	case eventJoinedChat:
		var p struct {
			ThreadID string `json:"threadId"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		s.mu.Lock()
		// acks for other rooms on the same connection are not ours
		if p.ThreadID == s.threadID {
			s.joined = true
		}
		s.mu.Unlock()

	case eventReceiveMsg:
		var p struct {
			ThreadID      string `json:"threadId"`
			Content       string `json:"content"`
			SenderID      string `json:"senderId"`
			CorrelationID string `json:"correlationId"`
			Timestamp     string `json:"timestamp"`
			FromSelf      bool   `json:"fromSelf"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		s.mu.Lock()
		if s.threadID != "" && p.ThreadID != "" && p.ThreadID != s.threadID {
			s.mu.Unlock()
			return
		}
		ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		changed := s.reconcileLocked(Message{
			Sender:        p.SenderID,
			Content:       p.Content,
			CorrelationID: p.CorrelationID,
			Timestamp:     ts,
		})
		s.mu.Unlock()
		if changed {
			s.notify()
		}

	case eventUserTyping:
		var p struct {
			UserID   string `json:"userId"`
			IsTyping bool   `json:"isTyping"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		if p.UserID != s.peerID {
			return
		}
		s.mu.Lock()
		s.peerTyping = p.IsTyping
		s.mu.Unlock()
		s.notify()

	case eventNotification:
		if s.opts.OnNotification == nil {
			return
		}
		var p struct {
			ThreadID string `json:"threadId"`
			SenderID string `json:"senderId"`
			Preview  string `json:"preview"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		s.opts.OnNotification(p.ThreadID, p.SenderID, p.Preview)
	}
}

func (s *Session) notify() {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
