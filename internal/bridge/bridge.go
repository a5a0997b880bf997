// Package bridge wires the connection, filter, notification and status
// components into the engine the consumer talks to.
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeahso/notebridge/internal/connection"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/filter"
	"github.com/soyeahso/notebridge/internal/hooks"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/soyeahso/notebridge/internal/notify"
	"github.com/soyeahso/notebridge/internal/outbound"
	"github.com/soyeahso/notebridge/internal/status"
)

// Status texts for send outcomes.
const (
	MsgSent          = "Message sent"
	MsgNotConnected  = "Not connected"
	MsgNothingToSend = "Nothing to send"
	MsgNotConfigured = "Connection failed: not configured"
)

var errEmptyNote = errors.New("note is empty")

// Bridge is the engine behind a notes widget. All consumer callbacks run on
// one goroutine in the order the underlying events happened.
type Bridge struct {
	creds     domain.Credentials
	transport domain.Transport
	log       *logging.Logger
	grace     time.Duration

	hooks    *hooks.Manager
	dispatch *hooks.Dispatcher
	status   *status.Line
	conn     *connection.Manager
	sender   *outbound.Sender
	notify   *notify.Coordinator

	input    atomic.Bool
	shutdown sync.Once
}

// Initialize builds the engine. It does not connect.
func Initialize(creds domain.Credentials, transport domain.Transport, opts ...Option) *Bridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bridge{
		creds:     creds,
		transport: transport,
		log:       o.log.Sub("bridge"),
		grace:     o.grace,
	}
	b.hooks = hooks.NewManager(o.log)
	b.dispatch = hooks.NewDispatcher(b.hooks)
	b.status = status.New(o.clock, o.expiry, o.idle, b.onStatus)
	b.notify = notify.New(o.window, sink{b.dispatch})
	b.conn = connection.New(creds, transport, o.log, b.onTransition)
	b.sender = outbound.New(b.conn, transport, creds.PeerID, o.sendTimeout, o.log)
	transport.OnEvent(b.onInbound)

	b.log.Debug().
		Str("transport", transport.Name()).
		Bool("enabled", creds.Enabled).
		Msg("bridge initialized")
	return b
}

// onTransition runs under the connection manager's lock.
func (b *Bridge) onTransition(t domain.Transition) {
	b.input.Store(t.To == domain.StateConnected)
	// In-progress states stay up until the next transition replaces them.
	transient := t.To != domain.StateConnecting && t.To != domain.StateDisconnecting
	b.status.Set(t.Message, transient)
	b.dispatch.Post(hooks.ConnectionPayload(t.To))
}

// onStatus runs under the status line's lock.
func (b *Bridge) onStatus(msg string) {
	b.dispatch.Post(hooks.StatusPayload(msg))
}

func (b *Bridge) onInbound(ev domain.InboundEvent) {
	msg, ok := filter.Apply(ev, b.creds.PeerID)
	if !ok {
		b.log.Debug().
			Str("sender", ev.SenderID).
			Str("reason", string(filter.Classify(ev, b.creds.PeerID))).
			Msg("discarded inbound message")
		return
	}
	b.notify.OnMessage(msg)
}

// sink forwards coordinator output to the dispatcher.
type sink struct {
	dispatch *hooks.Dispatcher
}

func (s sink) Display(msg domain.RelevantMessage) {
	s.dispatch.Post(hooks.MessagePayload(msg))
}

func (s sink) BadgeChanged(badge domain.Badge) {
	s.dispatch.Post(hooks.BadgePayload(badge))
}

// Connect logs in and blocks until the attempt resolves. Concurrent calls
// share one attempt.
func (b *Bridge) Connect(ctx context.Context) domain.ConnectOutcome {
	outcome := b.conn.Connect(ctx)
	if !b.creds.Usable() {
		// No transition happens, so report it here.
		b.status.Set(MsgNotConfigured, true)
	}
	return outcome
}

// ConnectAsync starts Connect in the background. The channel receives the
// outcome and is then closed.
func (b *Bridge) ConnectAsync(ctx context.Context) <-chan domain.ConnectOutcome {
	ch := make(chan domain.ConnectOutcome, 1)
	go func() {
		defer close(ch)
		ch <- b.Connect(ctx)
	}()
	return ch
}

// Disconnect tears the session down. It always succeeds.
func (b *Bridge) Disconnect(ctx context.Context) {
	b.conn.Disconnect(ctx)
}

// DisconnectAsync starts Disconnect in the background. The channel is closed
// when teardown finishes.
func (b *Bridge) DisconnectAsync(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		b.Disconnect(ctx)
	}()
	return ch
}

// SendNote sends text to the peer after trimming it. Empty notes are
// rejected without contacting the transport.
func (b *Bridge) SendNote(ctx context.Context, text string) domain.SendOutcome {
	text = strings.TrimSpace(text)
	if text == "" {
		b.status.Set(MsgNothingToSend, true)
		return domain.SendFailed(&domain.Error{Kind: domain.KindEmptyNote, Op: "send", Err: errEmptyNote})
	}

	outcome := b.sender.Send(ctx, text)
	switch {
	case outcome.Sent:
		b.status.Set(MsgSent, true)
	case outcome.Reason == string(domain.KindNotConnected):
		b.status.Set(MsgNotConnected, true)
	default:
		b.status.Set("Send failed: "+describe(outcome.Err), true)
	}
	return outcome
}

// NotifyFocusChanged records the consumer window's state.
func (b *Bridge) NotifyFocusChanged(focused, visible, minimized bool) {
	b.notify.SetWindowState(domain.WindowState{
		Focused:   focused,
		Visible:   visible,
		Minimized: minimized,
	})
}

// Shutdown waits up to the grace period for in-flight sends, disconnects,
// stops the status timer and delivers the remaining events. Later calls
// return immediately.
func (b *Bridge) Shutdown(ctx context.Context) error {
	var err error
	b.shutdown.Do(func() {
		b.log.Info().Msg("shutting down")

		gctx, cancel := context.WithTimeout(ctx, b.grace)
		if !b.sender.Wait(gctx) {
			b.log.Warn().Dur("grace", b.grace).Msg("abandoning in-flight sends")
		}
		cancel()

		b.conn.Disconnect(ctx)
		b.status.Close()
		err = b.dispatch.Close(ctx)
	})
	return err
}

// Drain waits until every event raised so far has been delivered.
func (b *Bridge) Drain(ctx context.Context) error {
	return b.dispatch.Drain(ctx)
}

// State returns the connection state.
func (b *Bridge) State() domain.ConnectionState { return b.conn.State() }

// InputEnabled reports whether note input should be accepted.
func (b *Bridge) InputEnabled() bool { return b.input.Load() }

// Status returns the status line.
func (b *Bridge) Status() status.State { return b.status.Current() }

// Badge returns the unread badge.
func (b *Bridge) Badge() domain.Badge { return b.notify.Badge() }

// Snapshot is a point-in-time view of the bridge.
type Snapshot struct {
	Transport    string                 `json:"transport"`
	State        domain.ConnectionState `json:"state"`
	Identity     string                 `json:"identity,omitempty"`
	InputEnabled bool                   `json:"inputEnabled"`
	Status       status.State           `json:"status"`
	Badge        domain.Badge           `json:"badge"`
	BadgeLabel   string                 `json:"badgeLabel,omitempty"`
	Window       domain.WindowState     `json:"window"`
}

// Snapshot returns the current state of every component.
func (b *Bridge) Snapshot() Snapshot {
	badge := b.notify.Badge()
	s := Snapshot{
		Transport:    b.transport.Name(),
		State:        b.conn.State(),
		InputEnabled: b.input.Load(),
		Status:       b.status.Current(),
		Badge:        badge,
		BadgeLabel:   badge.Label(),
		Window:       b.notify.Window(),
	}
	if id, ok := b.conn.Identity(); ok {
		s.Identity = id.Name
	}
	return s
}

// Subscribe registers a raw handler for one of the hooks events. Handlers
// with the same name can be removed together with Unsubscribe.
func (b *Bridge) Subscribe(event, name string, handler hooks.Handler) {
	b.hooks.On(event, name, handler)
}

// Unsubscribe removes the named handler from event.
func (b *Bridge) Unsubscribe(event, name string) {
	b.hooks.Off(event, name)
}

// OnStatusChanged calls fn with every new status message.
func (b *Bridge) OnStatusChanged(name string, fn func(message string)) {
	b.Subscribe(hooks.EventStatusChanged, name, func(_ context.Context, p hooks.Payload) error {
		fn(p.Status)
		return nil
	})
}

// OnMessageReceived calls fn once per message from the peer.
func (b *Bridge) OnMessageReceived(name string, fn func(msg domain.RelevantMessage)) {
	b.Subscribe(hooks.EventMessageReceived, name, func(_ context.Context, p hooks.Payload) error {
		fn(*p.Message)
		return nil
	})
}

// OnBadgeChanged calls fn whenever the unread badge changes.
func (b *Bridge) OnBadgeChanged(name string, fn func(badge domain.Badge)) {
	b.Subscribe(hooks.EventBadgeChanged, name, func(_ context.Context, p hooks.Payload) error {
		fn(*p.Badge)
		return nil
	})
}

// OnConnectionChanged calls fn with every connection state change.
func (b *Bridge) OnConnectionChanged(name string, fn func(change hooks.ConnectionChange)) {
	b.Subscribe(hooks.EventConnectionChanged, name, func(_ context.Context, p hooks.Payload) error {
		fn(*p.Connection)
		return nil
	})
}

// describe renders err for the status line without the operation prefix.
func describe(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
