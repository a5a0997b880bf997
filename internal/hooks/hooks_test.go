package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventStatusChanged, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventStatusChanged, p.Event)
		assert.Equal(t, "Ready", p.Status)
		return nil
	})

	m.Emit(context.Background(), StatusPayload("Ready"))
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventMessageReceived, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventMessageReceived, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), MessagePayload(domain.RelevantMessage{Content: "hi"}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_OnlyMatchingEvent(t *testing.T) {
	m := testManager()

	var calls int
	m.On(EventBadgeChanged, "badge", func(_ context.Context, _ Payload) error {
		calls++
		return nil
	})

	m.Emit(context.Background(), StatusPayload("Ready"))
	assert.Equal(t, 0, calls)
}

func TestManager_Emit_HandlerErrorAndPanic(t *testing.T) {
	m := testManager()

	var lastCalled bool
	m.On(EventStatusChanged, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventStatusChanged, "panicking", func(_ context.Context, _ Payload) error {
		panic("boom")
	})
	m.On(EventStatusChanged, "last", func(_ context.Context, _ Payload) error {
		lastCalled = true
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), StatusPayload("x")) })
	assert.True(t, lastCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), BadgePayload(domain.BadgeFor(0)))
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var callCount int
	m.On(EventStatusChanged, "removable", func(_ context.Context, _ Payload) error {
		callCount++
		return nil
	})

	m.Emit(context.Background(), StatusPayload("a"))
	assert.Equal(t, 1, callCount)

	m.Off(EventStatusChanged, "removable")
	m.Emit(context.Background(), StatusPayload("b"))
	assert.Equal(t, 1, callCount)
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var keepCalled int
	m.On(EventStatusChanged, "remove-me", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventStatusChanged, "keep-me", func(_ context.Context, _ Payload) error {
		keepCalled++
		return nil
	})

	m.Off(EventStatusChanged, "remove-me")
	m.Emit(context.Background(), StatusPayload("x"))
	assert.Equal(t, 1, keepCalled)
}

func TestAllEvents(t *testing.T) {
	require.Len(t, AllEvents, 4)
	assert.Contains(t, AllEvents, EventConnectionChanged)
}

func TestPayloadBuilders(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	msg := MessagePayload(domain.RelevantMessage{Content: "hi", Timestamp: ts})
	require.NotNil(t, msg.Message)
	assert.Equal(t, "hi", msg.Message.Content)

	badge := BadgePayload(domain.BadgeFor(12))
	require.NotNil(t, badge.Badge)
	assert.Equal(t, "9+", badge.Badge.Label())

	conn := ConnectionPayload(domain.StateConnected)
	require.NotNil(t, conn.Connection)
	assert.True(t, conn.Connection.InputEnabled)
	assert.False(t, ConnectionPayload(domain.StateConnecting).Connection.InputEnabled)
}
