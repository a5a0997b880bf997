package irc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lrstanley/girc"
	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNew(t *testing.T) {
	tr := New(config.IRCConfig{Server: "irc.libera.chat", Nick: "notebot", UseTLS: true}, testLogger())
	assert.Equal(t, "irc", tr.Name())
}

func TestDefaultPorts(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.IRCConfig
		want int
	}{
		{"TLS defaults to 6697", config.IRCConfig{UseTLS: true}, 6697},
		{"plain defaults to 6667", config.IRCConfig{}, 6667},
		{"explicit port wins", config.IRCConfig{Port: 7000, UseTLS: true}, 7000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.cfg, testLogger()).port())
		})
	}
}

func TestLogin_RequiresServerAndNick(t *testing.T) {
	tr := New(config.IRCConfig{Nick: "notebot"}, testLogger())
	err := tr.Login(context.Background(), "secret")
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))

	tr = New(config.IRCConfig{Server: "irc.test", Nick: "not a nick"}, testLogger())
	err = tr.Login(context.Background(), "secret")
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestLogin_BuildsClient(t *testing.T) {
	tr := New(config.IRCConfig{Server: "irc.test", Nick: "notebot"}, testLogger())
	require.NoError(t, tr.Login(context.Background(), "secret"))

	tr.mu.RLock()
	assert.NotNil(t, tr.client)
	tr.mu.RUnlock()

	require.NoError(t, tr.Logout(context.Background()))
	tr.mu.RLock()
	assert.Nil(t, tr.client)
	tr.mu.RUnlock()
}

func TestStart_NotLoggedIn(t *testing.T) {
	tr := New(config.IRCConfig{Server: "irc.test", Nick: "notebot"}, testLogger())
	_, err := tr.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}

func TestStop_WithoutClient(t *testing.T) {
	tr := New(config.IRCConfig{}, testLogger())
	assert.NoError(t, tr.Stop(context.Background()))
}

func TestResolvePeer_NotConnected(t *testing.T) {
	tr := New(config.IRCConfig{Server: "irc.test", Nick: "notebot"}, testLogger())
	_, err := tr.ResolvePeer(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSendDirect_NotConnected(t *testing.T) {
	tr := New(config.IRCConfig{}, testLogger())
	err := tr.SendDirect(context.Background(), domain.Peer{ID: "alice", ChannelID: "alice"}, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Contains(t, err.Error(), "not connected")
}

func TestOnEvent_StoresHandler(t *testing.T) {
	tr := New(config.IRCConfig{}, testLogger())

	var received domain.InboundEvent
	tr.OnEvent(func(ev domain.InboundEvent) { received = ev })

	e := girc.ParseEvent(":alice!a@example.org PRIVMSG notebot :hello there")
	require.NotNil(t, e)
	tr.onPrivmsg(nil, *e)

	assert.Equal(t, "alice", received.SenderID)
	assert.Equal(t, "hello there", received.Content)
}

func TestToInboundEvent_DirectMessage(t *testing.T) {
	e := girc.ParseEvent(":alice!a@example.org PRIVMSG notebot :see you at 5")
	require.NotNil(t, e)

	ev := toInboundEvent(*e, time.Now())
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "alice", ev.SenderID)
	assert.Equal(t, "alice", ev.SenderName)
	assert.Equal(t, "see you at 5", ev.Content)
	assert.True(t, ev.IsDirectMessage)
	assert.False(t, ev.IsFromBot)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestToInboundEvent_ChannelMessage(t *testing.T) {
	e := girc.ParseEvent(":alice!a@example.org PRIVMSG #general :hi all")
	require.NotNil(t, e)

	ev := toInboundEvent(*e, time.Now())
	assert.False(t, ev.IsDirectMessage)
}

func TestToInboundEvent_BotTag(t *testing.T) {
	e := girc.ParseEvent("@bot :helper!h@example.org PRIVMSG notebot :beep")
	require.NotNil(t, e)

	ev := toInboundEvent(*e, time.Now())
	assert.True(t, ev.IsFromBot)
	assert.Equal(t, "beep", ev.Content)
}

func TestToInboundEvent_Action(t *testing.T) {
	e := girc.ParseEvent(":alice!a@example.org PRIVMSG notebot :\x01ACTION waves\x01")
	require.NotNil(t, e)

	ev := toInboundEvent(*e, time.Now())
	assert.Equal(t, "waves", ev.Content)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(classify("op", errors.New("SASL authentication failed"))))
	assert.Equal(t, domain.KindNetwork, domain.KindOf(classify("op", errors.New("dial tcp: connection refused"))))
}

func TestSplitMessage_Short(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, splitMessage("hello world", 400))
}

func TestSplitMessage_MultiLine(t *testing.T) {
	result := splitMessage("line one\nline two\r\n\nline three", 400)
	assert.Equal(t, []string{"line one", "line two", "line three"}, result)
}

func TestSplitMessage_LongLine(t *testing.T) {
	result := splitMessage("abcdefghijklmnopqrstuvwxyz", 10)
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz"}, result)
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	note := strings.Repeat("é", 300) + "日本語"
	chunks := splitMessage(note, maxLineLen)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q", c)
		assert.LessOrEqual(t, len(c), maxLineLen)
	}
	assert.Equal(t, note, strings.Join(chunks, ""))

	// Three-byte runes with a limit that falls mid-rune.
	assert.Equal(t, []string{"日", "本", "語"}, splitMessage("日本語", 4))
	// A limit smaller than one rune still makes progress.
	assert.Equal(t, []string{"日", "本"}, splitMessage("日本", 2))
}
