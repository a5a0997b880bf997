// Package config loads, validates and persists notebridge configuration.
package config

import (
	"fmt"
	"time"

	"github.com/soyeahso/notebridge/internal/domain"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultTransport   = "discord"
	DefaultSendTimeout = 15 * time.Second
	DefaultIdleStatus  = "Ready"
	DefaultExpiry      = 5 * time.Second
	DefaultGrace       = 3 * time.Second
	DefaultGatewayPort = 18790
)

// Defaults returns a Config with defaults applied. Messaging is disabled.
func Defaults() Config {
	return Config{
		Transport: TransportConfig{
			Kind:        DefaultTransport,
			SendTimeout: DefaultSendTimeout,
		},
		Status: StatusConfig{
			Idle:   DefaultIdleStatus,
			Expiry: DefaultExpiry,
		},
		Shutdown: ShutdownConfig{
			Grace: DefaultGrace,
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Credentials returns the connection credentials carried by the config.
func (c Config) Credentials() domain.Credentials {
	return domain.Credentials{
		Token:   c.Peer.Token,
		PeerID:  c.Peer.PeerID,
		Enabled: c.Peer.Enabled,
	}
}
