// Package notify tracks unread messages against the consumer window's focus.
package notify

import (
	"sync"

	"github.com/soyeahso/notebridge/internal/domain"
)

// Sink receives coordinator output. Methods are called with the coordinator's
// lock held, in the order the changes happened; they must not block.
type Sink interface {
	Display(msg domain.RelevantMessage)
	BadgeChanged(b domain.Badge)
}

// Coordinator owns the unread count and the window state.
type Coordinator struct {
	sink Sink

	mu     sync.Mutex
	unread int
	window domain.WindowState
}

// New creates a coordinator starting from the given window state.
func New(initial domain.WindowState, sink Sink) *Coordinator {
	return &Coordinator{sink: sink, window: initial}
}

// OnMessage forwards msg to the display and counts it as unread unless the
// window is focused, visible and not minimized.
func (c *Coordinator) OnMessage(msg domain.RelevantMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sink.Display(msg)
	if c.window.Attentive() {
		return
	}
	c.unread++
	c.sink.BadgeChanged(domain.BadgeFor(c.unread))
}

// SetWindowState records a window change from the consumer. Regaining full
// attention clears the unread count; losing it changes nothing else.
func (c *Coordinator) SetWindowState(w domain.WindowState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = w
	if w.Attentive() {
		c.focusGainedLocked()
	}
}

// OnFocusGained marks the window focused and visible.
func (c *Coordinator) OnFocusGained() {
	c.SetWindowState(domain.WindowState{Focused: true, Visible: true})
}

// OnFocusLost marks the window unfocused. The badge is not touched.
func (c *Coordinator) OnFocusLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.Focused = false
}

func (c *Coordinator) focusGainedLocked() {
	if c.unread == 0 {
		return
	}
	c.unread = 0
	c.sink.BadgeChanged(domain.BadgeFor(0))
}

// Unread returns the stored unread count.
func (c *Coordinator) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Badge returns the current badge.
func (c *Coordinator) Badge() domain.Badge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.BadgeFor(c.unread)
}

// Window returns the last reported window state.
func (c *Coordinator) Window() domain.WindowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}
