package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and the state of a running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			b := version.Get()
			fmt.Fprintf(out, "NoteBridge %s (commit %s)\n\n", b.Version, b.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults; run `notebridge config init`)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			printSummary(out, cfg)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			if cfg.Gateway.Enabled {
				fmt.Fprintln(out)
				printLive(cmd.Context(), out, cfg.Gateway)
			}
			return nil
		},
	}

	return cmd
}

func printSummary(out io.Writer, cfg config.Config) {
	peer := cfg.Peer.PeerID
	if peer == "" {
		peer = "(none)"
	}
	fmt.Fprintf(out, "Peer:      enabled=%v id=%s token=%s\n", cfg.Peer.Enabled, peer, mask(cfg.Peer.Token))

	fmt.Fprintf(out, "Transport: %s sendTimeout=%s\n", cfg.Transport.Kind, cfg.Transport.SendTimeout)
	if cfg.Transport.Kind == "irc" {
		irc := cfg.Transport.IRC
		fmt.Fprintf(out, "IRC:       server=%s port=%d nick=%s tls=%v\n", irc.Server, irc.Port, irc.Nick, irc.UseTLS)
	}
	fmt.Fprintf(out, "Status:    idle=%q expiry=%s\n", cfg.Status.Idle, cfg.Status.Expiry)

	if cfg.Gateway.Enabled {
		fmt.Fprintf(out, "Gateway:   port=%d bind=%s origins=%s\n",
			cfg.Gateway.Port, cfg.Gateway.Bind, strings.Join(cfg.Gateway.AllowedOrigins, ","))
	} else {
		fmt.Fprintln(out, "Gateway:   disabled")
	}
}

// printLive asks a running gateway for its snapshot.
func printLive(ctx context.Context, out io.Writer, gw config.GatewayConfig) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/status", gw.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(out, "Running:   %v\n", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+gw.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(out, "Running:   no (gateway not reachable)")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(out, "Running:   gateway answered %s\n", resp.Status)
		return
	}

	var snap struct {
		State    string `json:"state"`
		Identity string `json:"identity"`
		Status   struct {
			Message string `json:"message"`
		} `json:"status"`
		Badge struct {
			Count int `json:"count"`
		} `json:"badge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Fprintf(out, "Running:   unreadable status: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Running:   %s as %s, %d unread, status %q\n",
		snap.State, snap.Identity, snap.Badge.Count, snap.Status.Message)
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return "(unset)"
	case strings.HasPrefix(secret, "${"):
		return secret
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
