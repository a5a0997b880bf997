package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestClientRegistryNew(t *testing.T) {
	reg := NewClientRegistry(testLog())
	require.NotNil(t, reg)
	assert.Equal(t, 0, reg.Count())
}

func TestClientRegistryAddRemove(t *testing.T) {
	reg := NewClientRegistry(testLog())
	c1 := newClient(ClientInfo{ID: "widget"}, testLog())
	c2 := newClient(ClientInfo{ID: "widget"}, testLog())
	assert.NotEqual(t, c1.ConnID, c2.ConnID)

	reg.Add(c1)
	reg.Add(c2)
	assert.Equal(t, 2, reg.Count())

	reg.Remove(c1.ConnID)
	assert.Equal(t, 1, reg.Count())

	reg.Remove("nonexistent")
	assert.Equal(t, 1, reg.Count())

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
	assert.ErrorIs(t, c2.Send(Frame{}), ErrClientClosed)
}

func TestClientRegistryRegister_GreetingPrecedesEvents(t *testing.T) {
	reg := NewClientRegistry(testLog())
	c := newClient(ClientInfo{ID: "widget"}, testLog())

	broadcasted := make(chan struct{})
	err := reg.Register(c, func() error {
		go func() {
			reg.Broadcast(EventStatusChanged, StatusEvent{Message: "Connecting…"}, 1)
			close(broadcasted)
		}()
		time.Sleep(20 * time.Millisecond)
		return c.Respond("hello-1", HelloOK{Protocol: ProtocolVersion})
	})
	require.NoError(t, err)
	<-broadcasted

	first := <-c.out
	assert.Equal(t, FrameTypeResponse, first.Type)
	assert.Equal(t, "hello-1", first.ID)

	second := <-c.out
	assert.Equal(t, EventStatusChanged, second.Event)
}

func TestClientRegistryRegister_GreetFailure(t *testing.T) {
	reg := NewClientRegistry(testLog())
	c := newClient(ClientInfo{ID: "widget"}, testLog())

	err := reg.Register(c, func() error { return errors.New("queue full") })
	assert.EqualError(t, err, "queue full")
	assert.Equal(t, 0, reg.Count())
}

func TestClientSendQueues(t *testing.T) {
	c := newClient(ClientInfo{}, testLog())

	require.NoError(t, c.Respond("r1", map[string]bool{"ok": true}))
	f := <-c.out
	assert.Equal(t, FrameTypeResponse, f.Type)
	assert.Equal(t, "r1", f.ID)
}

func TestClientSendQueueFull(t *testing.T) {
	c := newClient(ClientInfo{}, testLog())
	for i := 0; i < sendQueue; i++ {
		require.NoError(t, c.Send(Frame{Type: FrameTypeEvent}))
	}
	assert.ErrorIs(t, c.Send(Frame{Type: FrameTypeEvent}), ErrSlowClient)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := newClient(ClientInfo{}, testLog())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.ErrorIs(t, c.SendEvent(EventStatusChanged, StatusEvent{}, 1), ErrClientClosed)
}

func TestBroadcastDropsStalledClient(t *testing.T) {
	reg := NewClientRegistry(testLog())
	stalled := newClient(ClientInfo{ID: "stalled"}, testLog())
	healthy := newClient(ClientInfo{ID: "healthy"}, testLog())
	reg.Add(stalled)
	reg.Add(healthy)

	for i := 0; i < sendQueue; i++ {
		require.NoError(t, stalled.Send(Frame{}))
	}

	reg.Broadcast(EventStatusChanged, StatusEvent{Message: "Ready"}, 9)

	select {
	case <-stalled.Done():
	default:
		t.Fatal("stalled client not closed")
	}

	f := <-healthy.out
	assert.Equal(t, EventStatusChanged, f.Event)
	assert.Equal(t, int64(9), f.Seq)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GatewayConfig
		want string
	}{
		{"loopback", config.GatewayConfig{Bind: "loopback", Port: 18790}, "127.0.0.1:18790"},
		{"lan", config.GatewayConfig{Bind: "lan", Port: 9000}, "0.0.0.0:9000"},
		{"empty defaults to loopback", config.GatewayConfig{Port: 18790}, "127.0.0.1:18790"},
		{"unknown defaults to loopback", config.GatewayConfig{Bind: "bogus", Port: 1}, "127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
		})
	}
}
