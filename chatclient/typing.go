package chatclient

import (
	"sync"
	"time"
)

// TypingNotifier debounces keystrokes into typing signals: at most one
// isTyping=true per debounce window, and exactly one isTyping=false once
// input stops for the window's duration. The timer always eventually
// fires, so an abandoned composer never leaves a stale indicator.
type TypingNotifier struct {
	emit   func(isTyping bool)
	window time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

// NewTypingNotifier wires emit (typically Session.EmitTyping) with the
// given debounce window; zero means the 2s default.
func NewTypingNotifier(emit func(isTyping bool), window time.Duration) *TypingNotifier {
	if window == 0 {
		window = 2 * time.Second
	}
	return &TypingNotifier{emit: emit, window: window}
}

// Keystroke registers input activity. The first keystroke of a burst emits
// isTyping=true; every keystroke pushes the stop timer back.
func (t *TypingNotifier) Keystroke() {
	t.mu.Lock()
	wasActive := t.active
	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, t.expire)
	t.mu.Unlock()

	if !wasActive {
		t.emit(true)
	}
}

func (t *TypingNotifier) expire() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	if wasActive {
		t.emit(false)
	}
}

// Stop cancels the pending timer and clears the indicator if it was set.
func (t *TypingNotifier) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	wasActive := t.active
	t.active = false
	t.mu.Unlock()

	if wasActive {
		t.emit(false)
	}
}
