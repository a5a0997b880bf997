// Package discord implements the chat transport on top of the discordgo library.
package discord

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// errNotLoggedIn is returned when a session method is used before Login.
var errNotLoggedIn = errors.New("discord: not logged in")

// Transport implements domain.Transport for Discord bot accounts.
type Transport struct {
	log *logging.Logger

	mu           sync.RWMutex
	session      *discordgo.Session
	self         *discordgo.User
	peers        map[string]domain.Peer
	removers     []func()
	onEvent      func(domain.InboundEvent)
	onDisconnect func(error)
}

// New creates an unauthenticated Discord transport.
func New(log *logging.Logger) *Transport {
	return &Transport{
		log:   log.Sub("discord"),
		peers: make(map[string]domain.Peer),
	}
}

func (t *Transport) Name() string { return "discord" }

func (t *Transport) OnEvent(handler func(ev domain.InboundEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent = handler
}

func (t *Transport) OnDisconnect(handler func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = handler
}

// Login creates a bot session and validates the token against the REST API.
func (t *Transport) Login(ctx context.Context, token string) error {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return domain.Wrap(domain.KindAuthentication, "discord login", err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	// Reconnection is the consumer's decision; a dropped session must surface.
	s.ShouldReconnectOnError = false
	s.SyncEvents = true

	self, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return classify("discord login", err)
	}

	t.mu.Lock()
	t.session = s
	t.self = self
	t.mu.Unlock()

	t.log.Debug().Str("user", self.Username).Msg("token accepted")
	return nil
}

// Start opens the gateway websocket and returns the logged-in identity.
func (t *Transport) Start(ctx context.Context) (domain.Identity, error) {
	t.mu.Lock()
	s, self := t.session, t.self
	if s == nil {
		t.mu.Unlock()
		return domain.Identity{}, domain.Wrap(domain.KindNetwork, "discord start", errNotLoggedIn)
	}
	t.removers = append(t.removers,
		s.AddHandler(t.handleMessageCreate),
		s.AddHandler(t.handleDisconnect),
	)
	t.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Open()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return domain.Identity{}, classify("discord start", err)
		}
	case <-ctx.Done():
		// Open may still complete; close whatever it produces.
		go func() {
			if <-errCh == nil {
				s.Close()
			}
		}()
		return domain.Identity{}, domain.Wrap(domain.KindNetwork, "discord start", ctx.Err())
	}

	t.log.Info().Str("user", self.Username).Msg("connected to Discord")
	return domain.Identity{ID: self.ID, Name: self.Username}, nil
}

// Stop closes the gateway websocket and detaches event handlers.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	s := t.session
	removers := t.removers
	t.removers = nil
	t.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	if s == nil {
		return nil
	}
	t.log.Info().Msg("disconnecting from Discord")
	return s.Close()
}

// Logout forgets the session. Bot tokens have no server-side logout.
func (t *Transport) Logout(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = nil
	t.self = nil
	t.peers = make(map[string]domain.Peer)
	return nil
}

// ResolvePeer looks up the user and opens (or reuses) the DM channel with them.
func (t *Transport) ResolvePeer(ctx context.Context, peerID string) (domain.Peer, error) {
	t.mu.RLock()
	s := t.session
	peer, cached := t.peers[peerID]
	t.mu.RUnlock()

	if s == nil {
		return domain.Peer{}, domain.Wrap(domain.KindNotConnected, "discord resolve", errNotLoggedIn)
	}
	if cached {
		return peer, nil
	}

	u, err := s.User(peerID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Peer{}, domain.Wrap(domain.KindSend, "discord resolve user", err)
	}
	ch, err := s.UserChannelCreate(peerID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Peer{}, domain.Wrap(domain.KindSend, "discord open dm", err)
	}

	peer = domain.Peer{ID: u.ID, Name: u.Username, ChannelID: ch.ID}
	t.mu.Lock()
	t.peers[peerID] = peer
	t.mu.Unlock()
	return peer, nil
}

// SendDirect posts text to the peer's DM channel, split at the message limit.
func (t *Transport) SendDirect(ctx context.Context, peer domain.Peer, text string) error {
	t.mu.RLock()
	s := t.session
	t.mu.RUnlock()

	if s == nil {
		return domain.Wrap(domain.KindNotConnected, "discord send", errNotLoggedIn)
	}
	if peer.ChannelID == "" {
		return domain.Wrap(domain.KindSend, "discord send", errors.New("peer has no DM channel"))
	}

	chunks := splitMessage(text, maxMessageLen)
	for _, chunk := range chunks {
		if _, err := s.ChannelMessageSend(peer.ChannelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return domain.Wrap(domain.KindSend, "discord send", err)
		}
	}

	t.log.Debug().
		Str("to", peer.ID).
		Int("chunks", len(chunks)).
		Msg("sent Discord DM")
	return nil
}

func (t *Transport) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}

	t.mu.RLock()
	handler := t.onEvent
	t.mu.RUnlock()

	if handler != nil {
		handler(toInboundEvent(m.Message))
	}
}

func (t *Transport) handleDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	t.log.Warn().Msg("disconnected from Discord")

	t.mu.RLock()
	handler := t.onDisconnect
	t.mu.RUnlock()

	if handler != nil {
		handler(errors.New("discord gateway closed"))
	}
}

// toInboundEvent maps a Discord message to a transport-neutral event.
// Messages without a guild arrive on a DM channel.
func toInboundEvent(m *discordgo.Message) domain.InboundEvent {
	return domain.InboundEvent{
		ID:              m.ID,
		SenderID:        m.Author.ID,
		SenderName:      m.Author.Username,
		Content:         m.Content,
		Timestamp:       m.Timestamp,
		IsDirectMessage: m.GuildID == "",
		IsFromBot:       m.Author.Bot,
	}
}

// classify maps discordgo errors to error kinds. Rejected tokens and
// gateway authentication failures are authentication failures.
func classify(op string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.Wrap(domain.KindAuthentication, op, err)
		}
	}
	// 4004 is the gateway's "authentication failed" close code.
	if websocket.IsCloseError(err, 4004) {
		return domain.Wrap(domain.KindAuthentication, op, err)
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return domain.Wrap(domain.KindAuthentication, op, err)
	}
	return domain.Wrap(domain.KindNetwork, op, err)
}

// splitMessage breaks text into chunks of at most maxLen characters,
// preferring to cut at the last newline inside each window.
func splitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > maxLen {
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
