package domain

import "context"

// Identity is the account the transport is logged in as.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Peer is a resolved direct-message target.
type Peer struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ChannelID string `json:"channelId,omitempty"` // platform DM channel, when the platform has one
}

// Transport is the contract every chat-platform implementation must satisfy.
//
// Callbacks registered with OnEvent and OnDisconnect are invoked on the
// transport's own goroutines and may run concurrently with any other method.
type Transport interface {
	// Name returns the transport identifier (e.g., "discord", "irc").
	Name() string

	// Login authenticates with the platform using the given secret.
	Login(ctx context.Context, token string) error

	// Start opens the realtime session and blocks until it is ready.
	Start(ctx context.Context) (Identity, error)

	// Stop closes the realtime session.
	Stop(ctx context.Context) error

	// Logout discards the authenticated session.
	Logout(ctx context.Context) error

	// ResolvePeer looks up the direct-message target for a peer identifier.
	ResolvePeer(ctx context.Context, peerID string) (Peer, error)

	// SendDirect delivers text to a resolved peer.
	SendDirect(ctx context.Context, peer Peer, text string) error

	// OnEvent registers the handler for inbound message events.
	OnEvent(handler func(ev InboundEvent))

	// OnDisconnect registers the handler for unsolicited session loss.
	OnDisconnect(handler func(err error))
}
