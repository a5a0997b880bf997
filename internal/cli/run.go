package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/soyeahso/notebridge/internal/bridge"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/gateway"
	"github.com/soyeahso/notebridge/internal/hooks"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		port      int
		bind      string
		noGateway bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the peer and serve the widget gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			b, err := newBridge(cfg)
			if err != nil {
				return err
			}
			logEvents(b)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gwErr := make(chan error, 1)
			if cfg.Gateway.Enabled && !noGateway {
				srv := gateway.New(cfg.Gateway, b, log)
				go func() { gwErr <- srv.Start(ctx) }()
			} else {
				log.Info().Msg("gateway disabled")
			}

			go func() {
				outcome := <-b.ConnectAsync(ctx)
				if !outcome.Connected {
					log.Warn().Str("reason", outcome.Reason).Msg("not connected; waiting for shutdown")
				}
			}()

			select {
			case <-ctx.Done():
			case err = <-gwErr:
				if err != nil {
					log.Error().Err(err).Msg("gateway stopped")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Grace*3)
			defer cancel()
			if serr := b.Shutdown(shutdownCtx); serr != nil {
				err = errors.Join(err, serr)
			}
			log.Info().Msg("stopped")
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan)")
	cmd.Flags().BoolVar(&noGateway, "no-gateway", false, "do not start the widget gateway")

	return cmd
}

// logEvents reports bridge events through the logger for headless runs.
func logEvents(b *bridge.Bridge) {
	l := log.Sub("events")
	b.OnStatusChanged("log", func(msg string) {
		l.Info().Str("status", msg).Msg("status changed")
	})
	b.OnMessageReceived("log", func(msg domain.RelevantMessage) {
		l.Info().Time("sent", msg.Timestamp).Str("content", msg.Content).Msg("message received")
	})
	b.OnBadgeChanged("log", func(badge domain.Badge) {
		l.Debug().Int("unread", badge.Count).Bool("visible", badge.Visible).Msg("badge changed")
	})
	b.OnConnectionChanged("log", func(change hooks.ConnectionChange) {
		l.Debug().Stringer("state", change.State).Bool("input", change.InputEnabled).Msg("connection changed")
	})
}
