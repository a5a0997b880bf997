package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/soyeahso/notebridge/internal/bridge"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/hooks"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a note and press enter to send it.
  /connect      connect to the peer
  /disconnect   disconnect from the peer
  /away         stop watching (new messages raise the unread badge)
  /back         resume watching (clears the badge)
  /status       show connection state and unread count
  /help         show this help
  /quit         exit`

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "note> ",
				HistoryFile:     filepath.Join(paths.Base, "chat_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       "/quit",
				AutoComplete: readline.NewPrefixCompleter(
					readline.PcItem("/connect"),
					readline.PcItem("/disconnect"),
					readline.PcItem("/away"),
					readline.PcItem("/back"),
					readline.PcItem("/status"),
					readline.PcItem("/help"),
					readline.PcItem("/quit"),
				),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			b, err := newBridge(cfg, bridge.WithWindowState(domain.WindowState{Focused: true, Visible: true}))
			if err != nil {
				return err
			}

			s := newChatSession(b, rl.Stdout())
			s.attach()
			fmt.Fprintln(rl.Stdout(), chatHelp)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			s.connect(ctx)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if err != nil {
					if !errors.Is(err, io.EOF) {
						log.Warn().Err(err).Msg("reading input")
					}
					break
				}
				if s.handle(ctx, line) {
					break
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Grace*3)
			defer cancel()
			return b.Shutdown(shutdownCtx)
		},
	}
}

// chatEngine is the part of the bridge the terminal widget drives.
type chatEngine interface {
	ConnectAsync(ctx context.Context) <-chan domain.ConnectOutcome
	DisconnectAsync(ctx context.Context) <-chan struct{}
	SendNote(ctx context.Context, text string) domain.SendOutcome
	NotifyFocusChanged(focused, visible, minimized bool)
	Snapshot() bridge.Snapshot
	OnStatusChanged(name string, fn func(message string))
	OnMessageReceived(name string, fn func(msg domain.RelevantMessage))
	OnBadgeChanged(name string, fn func(badge domain.Badge))
	OnConnectionChanged(name string, fn func(change hooks.ConnectionChange))
}

// chatSession renders bridge events to a terminal and turns input lines
// into bridge calls.
type chatSession struct {
	engine chatEngine

	mu  sync.Mutex
	out io.Writer
}

func newChatSession(engine chatEngine, out io.Writer) *chatSession {
	return &chatSession{engine: engine, out: out}
}

func (s *chatSession) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *chatSession) attach() {
	s.engine.OnStatusChanged("chat", func(msg string) {
		s.printf("[%s]", msg)
	})
	s.engine.OnMessageReceived("chat", func(msg domain.RelevantMessage) {
		s.printf("%s  %s", msg.Timestamp.Local().Format("15:04"), msg.Content)
	})
	s.engine.OnBadgeChanged("chat", func(badge domain.Badge) {
		if badge.Visible {
			s.printf("(%s unread)", badge.Label())
		}
	})
	s.engine.OnConnectionChanged("chat", func(change hooks.ConnectionChange) {
		if change.State == domain.StateConnected {
			s.printf("input enabled")
		}
	})
}

// connect starts a connect attempt without blocking the prompt.
func (s *chatSession) connect(ctx context.Context) {
	s.engine.ConnectAsync(ctx)
}

// handle processes one input line. It reports whether the session should end.
func (s *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if out := s.engine.SendNote(ctx, line); out.Sent {
			s.printf("ACTION ITEM: %s", line)
		}
		return false
	}

	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return true
	case "/connect":
		s.connect(ctx)
	case "/disconnect":
		s.engine.DisconnectAsync(ctx)
	case "/away":
		s.engine.NotifyFocusChanged(false, true, false)
	case "/back":
		s.engine.NotifyFocusChanged(true, true, false)
	case "/status":
		snap := s.engine.Snapshot()
		who := snap.Identity
		if who == "" {
			who = "-"
		}
		s.printf("%s via %s as %s, %d unread", snap.State, snap.Transport, who, snap.Badge.Count)
	case "/help":
		s.printf("%s", chatHelp)
	default:
		s.printf("unknown command %s (try /help)", line)
	}
	return false
}
