// Package status holds the single transient status message shown to the operator.
package status

import (
	"sync"
	"time"
)

// State is a snapshot of the status line.
type State struct {
	Message   string    `json:"message"`
	Transient bool      `json:"transient"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Line holds one status message. Transient messages revert to the idle
// message after a fixed delay; a newer Set always cancels the pending revert.
type Line struct {
	clock    Clock
	delay    time.Duration
	idle     string
	listener func(message string)

	mu     sync.Mutex
	state  State
	timer  Timer
	gen    uint64
	closed bool
}

// New creates a status line showing the idle message. listener is called with
// every new message, including reverts to idle, while the line's lock is held;
// it must not block or call back into the line.
func New(clock Clock, delay time.Duration, idle string, listener func(message string)) *Line {
	if clock == nil {
		clock = SystemClock{}
	}
	if listener == nil {
		listener = func(string) {}
	}
	return &Line{
		clock:    clock,
		delay:    delay,
		idle:     idle,
		listener: listener,
		state:    State{Message: idle},
	}
}

// Set replaces the current message. Any pending expiry is stopped before
// Set returns. Setting the idle message never schedules an expiry.
func (l *Line) Set(message string, transient bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()
	if l.closed {
		return
	}

	transient = transient && message != l.idle && l.delay > 0
	l.state = State{Message: message, Transient: transient}

	if transient {
		gen := l.gen
		l.state.ExpiresAt = l.clock.Now().Add(l.delay)
		l.timer = l.clock.AfterFunc(l.delay, func() { l.expire(gen) })
	}

	l.listener(message)
}

// Current returns the current status.
func (l *Line) Current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Idle returns the idle message.
func (l *Line) Idle() string { return l.idle }

// Close cancels any pending expiry. Later Set calls are ignored.
func (l *Line) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.closed = true
}

// stopLocked cancels the pending timer and invalidates its generation, so a
// callback that already started running finds itself stale.
func (l *Line) stopLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
}

func (l *Line) expire(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen || l.closed {
		return
	}
	l.timer = nil
	l.gen++
	l.state = State{Message: l.idle}
	l.listener(l.idle)
}
