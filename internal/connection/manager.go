// Package connection owns the transport session lifecycle: a single
// Disconnected → Connecting → Connected → Disconnecting → Disconnected cycle
// with at most one login in flight and best-effort teardown.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
)

// Status texts attached to transitions.
const (
	MsgConnecting    = "Connecting…"
	MsgDisconnecting = "Disconnecting…"
	MsgDisconnected  = "Disconnected"
)

var (
	errNoCredentials = errors.New("connection disabled or token missing")
	errDisconnecting = errors.New("disconnect in progress")
	errAbandoned     = errors.New("connect abandoned by disconnect")
	errSessionLost   = errors.New("session lost while connecting")
)

// Listener receives every state transition in order. It is called with the
// manager's lock held and must not block or call back into the manager.
type Listener func(t domain.Transition)

// attempt is a connect call in progress. Concurrent Connect calls join it.
type attempt struct {
	done      chan struct{}
	cancel    context.CancelFunc
	abandoned bool
	dropped   error // drop signal seen before the attempt resolved
	outcome   domain.ConnectOutcome
}

// Manager drives a domain.Transport through the connection state machine.
type Manager struct {
	creds     domain.Credentials
	transport domain.Transport
	log       *logging.Logger
	listener  Listener

	mu       sync.Mutex
	state    domain.ConnectionState
	identity domain.Identity
	// inflight is the pending attempt. After a bounded Disconnect gives up
	// on it, it stays set until it finishes undoing its own login.
	inflight *attempt
	teardown chan struct{}
}

// New creates a manager in the Disconnected state and subscribes to the
// transport's disconnect signal.
func New(creds domain.Credentials, transport domain.Transport, log *logging.Logger, listener Listener) *Manager {
	m := &Manager{
		creds:     creds,
		transport: transport,
		log:       log.Sub("connection"),
		listener:  listener,
		state:     domain.StateDisconnected,
	}
	transport.OnDisconnect(m.handleDrop)
	return m
}

// State returns the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the account we are logged in as, if connected.
func (m *Manager) Identity() (domain.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.state == domain.StateConnected
}

// setLocked moves to a new state and notifies the listener. Caller holds m.mu.
func (m *Manager) setLocked(to domain.ConnectionState, msg string) {
	from := m.state
	m.state = to
	m.log.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("state transition")
	if m.listener != nil {
		m.listener(domain.Transition{From: from, To: to, Message: msg})
	}
}

// Connect logs in and starts the transport. It blocks until the attempt
// resolves or ctx ends. A call made while an attempt is pending waits for
// that attempt's outcome instead of starting another login.
func (m *Manager) Connect(ctx context.Context) domain.ConnectOutcome {
	if !m.creds.Usable() {
		m.log.Info().Msg("connect skipped: credentials not usable")
		return domain.ConnectFailed(domain.Wrap(domain.KindConfiguration, "connect", errNoCredentials))
	}

	m.mu.Lock()
	for m.state == domain.StateDisconnected && m.inflight != nil {
		// An abandoned attempt is still winding down. Logging in now would
		// overlap it, and its teardown would hit the new session.
		stale := m.inflight
		m.mu.Unlock()
		select {
		case <-stale.done:
		case <-ctx.Done():
			return domain.ConnectFailed(domain.Wrap(domain.KindNetwork, "connect", ctx.Err()))
		}
		m.mu.Lock()
	}
	switch m.state {
	case domain.StateConnected:
		m.mu.Unlock()
		return domain.Connected()
	case domain.StateConnecting:
		a := m.inflight
		m.mu.Unlock()
		return await(ctx, a)
	case domain.StateDisconnecting:
		m.mu.Unlock()
		return domain.ConnectFailed(domain.Wrap(domain.KindNetwork, "connect", errDisconnecting))
	}

	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	a := &attempt{done: make(chan struct{}), cancel: cancel}
	m.inflight = a
	m.setLocked(domain.StateConnecting, MsgConnecting)
	m.mu.Unlock()

	identity, loggedIn, err := m.establish(actx)
	if err != nil && loggedIn {
		m.release(ctx)
		loggedIn = false
	}

	m.mu.Lock()
	if err == nil && a.dropped != nil && !a.abandoned {
		err = domain.Wrap(domain.KindNetwork, "start", a.dropped)
		m.mu.Unlock()
		m.release(ctx)
		m.mu.Lock()
		loggedIn = false
	}
	var outcome domain.ConnectOutcome
	switch {
	case a.abandoned:
		// Disconnect owns the state now; only undo what this attempt set up.
		if loggedIn {
			m.mu.Unlock()
			m.release(ctx)
			m.mu.Lock()
		}
		outcome = domain.ConnectFailed(domain.Wrap(domain.KindNetwork, "connect", errAbandoned))
	case err != nil:
		outcome = domain.ConnectFailed(err)
		m.setLocked(domain.StateDisconnected, "Connection failed: "+describe(err))
	default:
		m.identity = identity
		outcome = domain.Connected()
		m.setLocked(domain.StateConnected, "Connected as "+identity.Name)
	}
	a.outcome = outcome
	if m.inflight == a {
		m.inflight = nil
	}
	close(a.done)
	m.mu.Unlock()

	if outcome.Connected {
		m.log.Info().Str("identity", identity.Name).Msg("connected")
	} else {
		m.log.Warn().Err(outcome.Err).Str("reason", outcome.Reason).Msg("connect failed")
	}
	return outcome
}

// establish runs login then start. loggedIn reports whether logout is owed.
func (m *Manager) establish(ctx context.Context) (domain.Identity, bool, error) {
	if err := m.transport.Login(ctx, m.creds.Token); err != nil {
		return domain.Identity{}, false, domain.Wrap(domain.KindAuthentication, "login", err)
	}
	identity, err := m.transport.Start(ctx)
	if err != nil {
		return domain.Identity{}, true, domain.Wrap(domain.KindNetwork, "start", err)
	}
	if identity.Name == "" {
		identity.Name = identity.ID
	}
	return identity, true, nil
}

func await(ctx context.Context, a *attempt) domain.ConnectOutcome {
	select {
	case <-a.done:
		return a.outcome
	case <-ctx.Done():
		return domain.ConnectFailed(domain.Wrap(domain.KindNetwork, "connect", ctx.Err()))
	}
}

// Disconnect tears the session down. It is idempotent and never fails from
// the caller's point of view; transport faults are logged and dropped.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	switch m.state {
	case domain.StateDisconnected:
		m.mu.Unlock()
		return
	case domain.StateDisconnecting:
		td := m.teardown
		m.mu.Unlock()
		select {
		case <-td:
		case <-ctx.Done():
		}
		return
	}

	from := m.state
	a := m.inflight
	if from == domain.StateConnecting && a != nil {
		a.abandoned = true
		a.cancel()
	}
	td := make(chan struct{})
	m.teardown = td
	m.setLocked(domain.StateDisconnecting, MsgDisconnecting)
	m.mu.Unlock()

	if from == domain.StateConnecting && a != nil {
		// The abandoned attempt undoes its own login.
		select {
		case <-a.done:
		case <-ctx.Done():
			m.log.Warn().Msg("gave up waiting for pending connect")
		}
	} else {
		m.release(ctx)
	}

	m.mu.Lock()
	m.identity = domain.Identity{}
	m.setLocked(domain.StateDisconnected, MsgDisconnected)
	close(td)
	m.mu.Unlock()

	m.log.Info().Msg("disconnected")
}

// release stops and logs out of the transport, swallowing faults.
func (m *Manager) release(ctx context.Context) {
	if err := m.transport.Stop(ctx); err != nil {
		m.log.Warn().Err(err).Msg("transport stop failed")
	}
	if err := m.transport.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("transport logout failed")
	}
}

// handleDrop reacts to the transport losing the session on its own. A drop
// while connecting fails the pending attempt. Signals in other states belong
// to our own teardown or a failed attempt.
func (m *Manager) handleDrop(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case domain.StateConnecting:
		if a := m.inflight; a != nil && a.dropped == nil {
			if err == nil {
				err = errSessionLost
			}
			a.dropped = err
		}
		return
	case domain.StateConnected:
	default:
		return
	}
	m.log.Warn().Err(err).Msg("transport dropped the session")
	m.identity = domain.Identity{}
	m.setLocked(domain.StateDisconnected, MsgDisconnected)
}

// describe renders err for the status line without the operation prefix.
func describe(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return fmt.Sprint(err)
}
