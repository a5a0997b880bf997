package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestNewStartsIdle(t *testing.T) {
	l := New(newFakeClock(), 5*time.Second, "Ready", nil)
	assert.Equal(t, "Ready", l.Current().Message)
	assert.False(t, l.Current().Transient)
	assert.Equal(t, "Ready", l.Idle())
}

func TestTransientExpiresToIdle(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	l := New(clock, 5*time.Second, "Ready", rec.record)

	l.Set("Message sent", true)
	st := l.Current()
	assert.Equal(t, "Message sent", st.Message)
	assert.True(t, st.Transient)
	assert.Equal(t, clock.Now().Add(5*time.Second), st.ExpiresAt)

	clock.Advance(4 * time.Second)
	assert.Equal(t, "Message sent", l.Current().Message)

	clock.Advance(time.Second)
	assert.Equal(t, "Ready", l.Current().Message)
	assert.Equal(t, []string{"Message sent", "Ready"}, rec.all())
}

func TestSupersededTimerNeverFires(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	l := New(clock, 5*time.Second, "Ready", rec.record)

	l.Set("first", true)
	clock.Advance(3 * time.Second)
	l.Set("second", true)
	assert.Equal(t, 1, clock.pending(), "first timer must be cancelled synchronously")

	// The first timer's deadline passes; nothing changes.
	clock.Advance(2 * time.Second)
	assert.Equal(t, "second", l.Current().Message)

	clock.Advance(3 * time.Second)
	assert.Equal(t, "Ready", l.Current().Message)
	assert.Equal(t, []string{"first", "second", "Ready"}, rec.all())
}

func TestStaleCallbackIsNoop(t *testing.T) {
	clock := newFakeClock()
	l := New(clock, 5*time.Second, "Ready", nil)

	l.Set("first", true)
	l.mu.Lock()
	staleGen := l.gen
	l.mu.Unlock()

	l.Set("second", true)
	// Simulate a callback that was already running when Set cancelled it.
	l.expire(staleGen)
	assert.Equal(t, "second", l.Current().Message)
}

func TestPersistentMessageDoesNotExpire(t *testing.T) {
	clock := newFakeClock()
	l := New(clock, 5*time.Second, "Ready", nil)

	l.Set("Connecting…", false)
	assert.Equal(t, 0, clock.pending())
	clock.Advance(time.Minute)
	assert.Equal(t, "Connecting…", l.Current().Message)
}

func TestPersistentCancelsPendingExpiry(t *testing.T) {
	clock := newFakeClock()
	l := New(clock, 5*time.Second, "Ready", nil)

	l.Set("Message sent", true)
	l.Set("Connecting…", false)
	clock.Advance(10 * time.Second)
	assert.Equal(t, "Connecting…", l.Current().Message)
}

func TestIdleMessageSchedulesNothing(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	l := New(clock, 5*time.Second, "Ready", rec.record)

	l.Set("Ready", true)
	assert.Equal(t, 0, clock.pending())
	assert.False(t, l.Current().Transient)
	assert.Equal(t, []string{"Ready"}, rec.all())
}

func TestCloseCancelsPending(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	l := New(clock, 5*time.Second, "Ready", rec.record)

	l.Set("Disconnected", true)
	l.Close()
	clock.Advance(time.Minute)
	l.Set("ignored", true)

	assert.Equal(t, "Disconnected", l.Current().Message)
	assert.Equal(t, []string{"Disconnected"}, rec.all())
}

func TestSystemClockExpiry(t *testing.T) {
	rec := &recorder{}
	l := New(SystemClock{}, 20*time.Millisecond, "Ready", rec.record)

	l.Set("first", true)
	l.Set("second", true)

	require.Eventually(t, func() bool {
		return l.Current().Message == "Ready"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "Ready"}, rec.all())
}
