// Package irc implements the chat transport on top of the girc library.
// Direct messages are PRIVMSGs addressed to our nick.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
)

// maxLineLen keeps each PRIVMSG well under the 512 byte protocol limit.
const maxLineLen = 400

// botTag is the IRCv3 message tag set by servers on bot-mode senders.
const botTag = "bot"

var errNotLoggedIn = errors.New("irc: not logged in")

// Transport implements domain.Transport for IRC.
type Transport struct {
	cfg config.IRCConfig
	log *logging.Logger

	mu           sync.RWMutex
	client       *girc.Client
	stopping     bool
	onEvent      func(domain.InboundEvent)
	onDisconnect func(error)
}

// New creates an IRC transport from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Transport {
	return &Transport{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (t *Transport) Name() string { return "irc" }

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

// port returns the configured port, or the conventional one for the TLS mode.
func (t *Transport) port() int {
	if t.cfg.Port != 0 {
		return t.cfg.Port
	}
	if t.cfg.UseTLS {
		return 6697
	}
	return 6667
}

// Login prepares a client authenticating with SASL PLAIN, using the token as
// the password. Credentials are checked by the server during Start.
func (t *Transport) Login(ctx context.Context, token string) error {
	if t.cfg.Server == "" || t.cfg.Nick == "" {
		return domain.Wrap(domain.KindConfiguration, "irc login", errors.New("server and nick are required"))
	}
	if !girc.IsValidNick(t.cfg.Nick) {
		return domain.Wrap(domain.KindConfiguration, "irc login", fmt.Errorf("invalid nick %q", t.cfg.Nick))
	}

	gircCfg := girc.Config{
		Server:  t.cfg.Server,
		Port:    t.port(),
		Nick:    t.cfg.Nick,
		User:    t.cfg.Nick,
		Name:    "NoteBridge",
		SSL:     t.cfg.UseTLS,
		Version: "NoteBridge/1.0",
	}
	if t.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{
			ServerName: t.cfg.Server,
		}
	}
	if token != "" {
		gircCfg.SASL = &girc.SASLPlain{
			User: t.cfg.Nick,
			Pass: token,
		}
	}

	t.mu.Lock()
	t.client = girc.New(gircCfg)
	t.stopping = false
	t.mu.Unlock()
	return nil
}

// Start connects to the server and waits for registration to complete.
func (t *Transport) Start(ctx context.Context) (domain.Identity, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return domain.Identity{}, domain.Wrap(domain.KindNetwork, "irc start", errNotLoggedIn)
	}

	connected := make(chan struct{})
	var once sync.Once
	client.Handlers.Add(girc.CONNECTED, func(_ *girc.Client, _ girc.Event) {
		once.Do(func() { close(connected) })
	})
	client.Handlers.Add(girc.PRIVMSG, t.onPrivmsg)

	t.log.Info().
		Str("server", t.cfg.Server).
		Int("port", t.port()).
		Str("nick", t.cfg.Nick).
		Bool("tls", t.cfg.UseTLS).
		Msg("connecting to IRC")

	// Connect blocks for the lifetime of the connection.
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case <-connected:
	case err := <-errCh:
		if err == nil {
			err = errors.New("connection closed during registration")
		}
		return domain.Identity{}, classify("irc connect", err)
	case <-ctx.Done():
		client.Close()
		return domain.Identity{}, domain.Wrap(domain.KindNetwork, "irc connect", ctx.Err())
	}

	go t.watch(client, errCh)

	nick := client.GetNick()
	t.log.Info().Str("nick", nick).Msg("connected to IRC")
	return domain.Identity{ID: nick, Name: nick}, nil
}

// watch reports the end of an established connection unless Stop caused it.
func (t *Transport) watch(client *girc.Client, errCh <-chan error) {
	err := <-errCh

	t.mu.RLock()
	stopping := t.stopping || t.client != client
	handler := t.onDisconnect
	t.mu.RUnlock()

	if stopping {
		return
	}
	if err == nil {
		err = errors.New("irc connection closed")
	}
	t.log.Warn().Err(err).Msg("disconnected from IRC")
	if handler != nil {
		handler(err)
	}
}

// Stop quits the server gracefully.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	client := t.client
	t.stopping = true
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	if client.IsConnected() {
		t.log.Info().Msg("disconnecting from IRC")
		client.Quit("NoteBridge signing off")
	}
	client.Close()
	return nil
}

// Logout discards the client and its SASL credentials.
func (t *Transport) Logout(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = nil
	return nil
}

// ResolvePeer validates the peer nick. IRC private messages need no channel
// setup, so the nick doubles as the delivery target.
func (t *Transport) ResolvePeer(ctx context.Context, peerID string) (domain.Peer, error) {
	if !t.connected() {
		return domain.Peer{}, domain.Wrap(domain.KindNotConnected, "irc resolve", errors.New("not connected"))
	}
	if !girc.IsValidNick(peerID) {
		return domain.Peer{}, domain.Wrap(domain.KindSend, "irc resolve", fmt.Errorf("invalid nick %q", peerID))
	}
	return domain.Peer{ID: peerID, Name: peerID, ChannelID: peerID}, nil
}

// SendDirect delivers text as one PRIVMSG per line.
func (t *Transport) SendDirect(ctx context.Context, peer domain.Peer, text string) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return domain.Wrap(domain.KindNotConnected, "irc send", errors.New("not connected"))
	}
	if peer.ChannelID == "" {
		return domain.Wrap(domain.KindSend, "irc send", errors.New("no target specified"))
	}

	lines := splitMessage(text, maxLineLen)
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return domain.Wrap(domain.KindSend, "irc send", err)
		}
		client.Cmd.Message(peer.ChannelID, line)
	}

	t.log.Debug().
		Str("to", peer.ChannelID).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return nil
}

func (t *Transport) connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client != nil && t.client.IsConnected()
}

func (t *Transport) onPrivmsg(_ *girc.Client, e girc.Event) {
	if e.Source == nil {
		return
	}

	t.mu.RLock()
	handler := t.onEvent
	t.mu.RUnlock()

	if handler != nil {
		handler(toInboundEvent(e, time.Now()))
	}
}

// toInboundEvent maps a PRIVMSG to a transport-neutral event. now is used
// when the server did not supply a server-time tag.
func toInboundEvent(e girc.Event, now time.Time) domain.InboundEvent {
	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = now
	}
	var isBot bool
	if e.Tags != nil {
		_, isBot = e.Tags.Get(botTag)
	}

	return domain.InboundEvent{
		ID:              uuid.New().String(),
		SenderID:        e.Source.Name,
		SenderName:      e.Source.Name,
		Content:         body,
		Timestamp:       ts,
		IsDirectMessage: !e.IsFromChannel(),
		IsFromBot:       isBot,
	}
}

// classify maps connection errors to error kinds. SASL rejections are
// authentication failures.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "sasl") || strings.Contains(msg, "authentication") {
		return domain.Wrap(domain.KindAuthentication, op, err)
	}
	return domain.Wrap(domain.KindNetwork, op, err)
}

// splitMessage breaks a long message into chunks suitable for IRC.
// Each newline in the input produces a separate chunk because IRC
// PRIVMSG does not support embedded newlines. Blank lines are dropped
// and lines longer than maxLen bytes are further split on a rune boundary.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(line)
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
