package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	shown  []domain.RelevantMessage
	badges []domain.Badge
}

func (s *recordingSink) Display(msg domain.RelevantMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, msg)
}

func (s *recordingSink) BadgeChanged(b domain.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges = append(s.badges, b)
}

var (
	unfocused = domain.WindowState{Focused: false, Visible: true}
	attentive = domain.WindowState{Focused: true, Visible: true}
)

func msg(text string) domain.RelevantMessage {
	return domain.RelevantMessage{Content: text, Timestamp: time.Now()}
}

func TestMessageWhileAttentiveIsNotCounted(t *testing.T) {
	sink := &recordingSink{}
	c := New(attentive, sink)

	c.OnMessage(msg("hi"))
	assert.Len(t, sink.shown, 1)
	assert.Empty(t, sink.badges)
	assert.Equal(t, 0, c.Unread())
}

func TestMessageCountedWhenAnyConditionFails(t *testing.T) {
	tests := []struct {
		name   string
		window domain.WindowState
	}{
		{"unfocused", domain.WindowState{Focused: false, Visible: true}},
		{"hidden", domain.WindowState{Focused: true, Visible: false}},
		{"minimized", domain.WindowState{Focused: true, Visible: true, Minimized: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			c := New(tt.window, sink)

			c.OnMessage(msg("hi"))
			assert.Len(t, sink.shown, 1, "messages are always displayed")
			require.Len(t, sink.badges, 1)
			assert.Equal(t, domain.Badge{Count: 1, Visible: true}, sink.badges[0])
		})
	}
}

func TestUnreadCountsSinceLastReset(t *testing.T) {
	sink := &recordingSink{}
	c := New(unfocused, sink)

	for i := 0; i < 12; i++ {
		c.OnMessage(msg("n"))
	}
	assert.Equal(t, 12, c.Unread())
	assert.Equal(t, "9+", c.Badge().Label())
	assert.Equal(t, 12, c.Badge().Count, "cap is display-only")

	c.SetWindowState(attentive)
	assert.Equal(t, 0, c.Unread())
	assert.Equal(t, domain.Badge{Count: 0, Visible: false}, sink.badges[len(sink.badges)-1])

	c.SetWindowState(unfocused)
	c.OnMessage(msg("again"))
	c.OnMessage(msg("again"))
	assert.Equal(t, 2, c.Unread())
}

func TestFocusGainedRequiresVisibleAndNotMinimized(t *testing.T) {
	sink := &recordingSink{}
	c := New(unfocused, sink)
	c.OnMessage(msg("hi"))

	c.SetWindowState(domain.WindowState{Focused: true, Visible: true, Minimized: true})
	assert.Equal(t, 1, c.Unread())

	c.SetWindowState(domain.WindowState{Focused: true, Visible: false})
	assert.Equal(t, 1, c.Unread())

	c.OnFocusGained()
	assert.Equal(t, 0, c.Unread())
}

func TestFocusLostDoesNotTouchBadge(t *testing.T) {
	sink := &recordingSink{}
	c := New(attentive, sink)

	c.OnFocusLost()
	assert.Empty(t, sink.badges)
	assert.False(t, c.Window().Focused)

	c.OnMessage(msg("hi"))
	c.OnFocusLost()
	require.Len(t, sink.badges, 1)
	assert.Equal(t, 1, c.Unread())
}

func TestFocusGainedWithNothingUnreadEmitsNothing(t *testing.T) {
	sink := &recordingSink{}
	c := New(unfocused, sink)

	c.SetWindowState(attentive)
	assert.Empty(t, sink.badges)
}

func TestTwoUnreadThenFocus(t *testing.T) {
	sink := &recordingSink{}
	c := New(unfocused, sink)

	c.OnMessage(msg("one"))
	c.OnMessage(msg("two"))
	c.SetWindowState(domain.WindowState{Focused: true, Visible: true, Minimized: false})

	assert.Equal(t, []domain.Badge{
		{Count: 1, Visible: true},
		{Count: 2, Visible: true},
		{Count: 0, Visible: false},
	}, sink.badges)
}

func TestConcurrentMessagesAreAllCounted(t *testing.T) {
	sink := &recordingSink{}
	c := New(unfocused, sink)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.OnMessage(msg("x"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Unread())
	require.Len(t, sink.badges, 50)
	for i, b := range sink.badges {
		assert.Equal(t, i+1, b.Count, "badge updates must be emitted in order")
	}
}
