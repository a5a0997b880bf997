// Package transport builds the chat-platform transport selected by configuration.
package transport

import (
	"fmt"

	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/soyeahso/notebridge/internal/transport/discord"
	"github.com/soyeahso/notebridge/internal/transport/irc"
)

// Kinds lists the supported transport kinds.
var Kinds = []string{"discord", "irc"}

// New returns the transport named by cfg.Kind.
func New(cfg config.TransportConfig, log *logging.Logger) (domain.Transport, error) {
	switch cfg.Kind {
	case "", "discord":
		return discord.New(log), nil
	case "irc":
		return irc.New(cfg.IRC, log), nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown transport kind %q", cfg.Kind)}
	}
}
