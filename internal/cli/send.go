package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <note>",
		Short: "Connect, send one note to the peer and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b, err := newBridge(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Grace*3)
				defer cancel()
				b.Shutdown(shutdownCtx)
			}()

			if outcome := b.Connect(ctx); !outcome.Connected {
				return fmt.Errorf("%s", b.Status().Message)
			}

			outcome := b.SendNote(ctx, strings.Join(args, " "))
			if !outcome.Sent {
				return fmt.Errorf("%s", b.Status().Message)
			}
			fmt.Println(b.Status().Message)
			return nil
		},
	}
}
