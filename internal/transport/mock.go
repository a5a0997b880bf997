package transport

import (
	"context"
	"sync"

	"github.com/soyeahso/notebridge/internal/domain"
)

// Mock is a test double for domain.Transport. Unset funcs succeed.
type Mock struct {
	TransportName string
	LoginFunc     func(ctx context.Context, token string) error
	StartFunc     func(ctx context.Context) (domain.Identity, error)
	StopFunc      func(ctx context.Context) error
	LogoutFunc    func(ctx context.Context) error
	ResolveFunc   func(ctx context.Context, peerID string) (domain.Peer, error)
	SendFunc      func(ctx context.Context, peer domain.Peer, text string) error

	mu           sync.Mutex
	calls        map[string]int
	sent         []string
	onEvent      func(domain.InboundEvent)
	onDisconnect func(error)
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *Mock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of transport calls of any kind.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Sent returns the texts passed to successful SendDirect calls.
func (m *Mock) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *Mock) Name() string {
	if m.TransportName == "" {
		return "mock"
	}
	return m.TransportName
}

func (m *Mock) Login(ctx context.Context, token string) error {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, token)
	}
	return nil
}

func (m *Mock) Start(ctx context.Context) (domain.Identity, error) {
	m.record("Start")
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return domain.Identity{ID: "1", Name: "notebot"}, nil
}

func (m *Mock) Stop(ctx context.Context) error {
	m.record("Stop")
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

func (m *Mock) Logout(ctx context.Context) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *Mock) ResolvePeer(ctx context.Context, peerID string) (domain.Peer, error) {
	m.record("ResolvePeer")
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, peerID)
	}
	return domain.Peer{ID: peerID, ChannelID: "dm-" + peerID}, nil
}

func (m *Mock) SendDirect(ctx context.Context, peer domain.Peer, text string) error {
	m.record("SendDirect")
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, peer, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, text)
	m.mu.Unlock()
	return nil
}

func (m *Mock) OnEvent(handler func(ev domain.InboundEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = handler
}

func (m *Mock) OnDisconnect(handler func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = handler
}

// Emit delivers an inbound event as the platform would.
func (m *Mock) Emit(ev domain.InboundEvent) {
	m.mu.Lock()
	h := m.onEvent
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Drop signals an unsolicited session loss.
func (m *Mock) Drop(err error) {
	m.mu.Lock()
	h := m.onDisconnect
	m.mu.Unlock()
	if h != nil {
		h(err)
	}
}
