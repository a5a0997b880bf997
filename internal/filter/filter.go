// Package filter decides which inbound events are direct messages from the peer.
package filter

import "github.com/soyeahso/notebridge/internal/domain"

// Reason explains why an event was discarded.
type Reason string

const (
	Kept        Reason = ""
	NotDirect   Reason = "not_direct"
	OtherSender Reason = "other_sender"
	FromBot     Reason = "from_bot"
)

// Apply returns the relevant message for ev, or false if it must be discarded.
// It keeps an event only if it arrived on a one-to-one channel, was sent by
// exactly peerID, and was not sent by a bot account. It holds no state.
func Apply(ev domain.InboundEvent, peerID string) (domain.RelevantMessage, bool) {
	if Classify(ev, peerID) != Kept {
		return domain.RelevantMessage{}, false
	}
	return domain.RelevantMessage{Content: ev.Content, Timestamp: ev.Timestamp}, true
}

// Classify returns the discard reason for ev, or Kept.
func Classify(ev domain.InboundEvent, peerID string) Reason {
	switch {
	case !ev.IsDirectMessage:
		return NotDirect
	case peerID == "" || ev.SenderID != peerID:
		return OtherSender
	case ev.IsFromBot:
		return FromBot
	default:
		return Kept
	}
}
