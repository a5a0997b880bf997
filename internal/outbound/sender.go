// Package outbound delivers notes to the configured peer.
package outbound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
)

// StateReader reports the current connection state.
type StateReader interface {
	State() domain.ConnectionState
}

var (
	errNotConnected = errors.New("not connected")
	errNoPeer       = errors.New("no peer configured")
)

// Sender sends direct messages through the transport. Sends may overlap;
// each caller gets its own outcome.
type Sender struct {
	state     StateReader
	transport domain.Transport
	peerID    string
	timeout   time.Duration
	log       *logging.Logger

	inflight sync.WaitGroup
}

// New creates a sender. A non-positive timeout disables the per-send deadline.
func New(state StateReader, transport domain.Transport, peerID string, timeout time.Duration, log *logging.Logger) *Sender {
	return &Sender{
		state:     state,
		transport: transport,
		peerID:    peerID,
		timeout:   timeout,
		log:       log.Sub("outbound"),
	}
}

// Send resolves the peer and delivers text. Transport faults come back as a
// failed outcome, never as a panic or error return.
func (s *Sender) Send(ctx context.Context, text string) domain.SendOutcome {
	if s.state.State() != domain.StateConnected {
		return domain.SendFailed(domain.Wrap(domain.KindNotConnected, "send", errNotConnected))
	}
	if s.peerID == "" {
		return domain.SendFailed(domain.Wrap(domain.KindNotConnected, "send", errNoPeer))
	}

	s.inflight.Add(1)
	defer s.inflight.Done()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.deliver(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("send failed")
		return domain.SendFailed(err)
	}

	s.log.Debug().Int("len", len(text)).Msg("note sent")
	return domain.Sent()
}

func (s *Sender) deliver(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("transport panicked during send")
			err = domain.Wrap(domain.KindSend, "send", errors.New("transport panicked"))
		}
	}()

	peer, err := s.transport.ResolvePeer(ctx, s.peerID)
	if err != nil {
		return sendErr("resolve peer", err)
	}
	if err := s.transport.SendDirect(ctx, peer, text); err != nil {
		return sendErr("send direct", err)
	}
	return nil
}

// sendErr classifies transport faults as SendFailure. A NotConnected kind
// from the transport is kept, since the session ended under us.
func sendErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindNotConnected {
		return err
	}
	return &domain.Error{Kind: domain.KindSend, Op: op, Err: err}
}

// Wait blocks until in-flight sends finish or ctx ends, and reports whether
// every send finished.
func (s *Sender) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
