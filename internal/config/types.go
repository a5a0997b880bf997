package config

import "time"

// Config is the root configuration for notebridge.
type Config struct {
	Peer      PeerConfig      `yaml:"peer"`
	Transport TransportConfig `yaml:"transport"`
	Status    StatusConfig    `yaml:"status,omitempty"`
	Shutdown  ShutdownConfig  `yaml:"shutdown,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// PeerConfig holds the account secret and the single peer messages are exchanged with.
type PeerConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Token   string `yaml:"token" env:"TOKEN"`    // ${ENV_VAR} supported
	PeerID  string `yaml:"peerId" env:"PEER_ID"` // platform user ID (Discord snowflake or IRC nick)
}

// TransportConfig selects and tunes the chat-platform transport.
type TransportConfig struct {
	Kind        string        `yaml:"kind" env:"TRANSPORT"` // "discord" | "irc"
	SendTimeout time.Duration `yaml:"sendTimeout,omitempty"`
	IRC         IRCConfig     `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC server settings. The peer token is used as the SASL password.
type IRCConfig struct {
	Server string `yaml:"server,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	Nick   string `yaml:"nick,omitempty"`
	UseTLS bool   `yaml:"useTLS,omitempty"`
}

// StatusConfig controls the transient status line.
type StatusConfig struct {
	Idle   string        `yaml:"idle,omitempty"`
	Expiry time.Duration `yaml:"expiry,omitempty"`
}

// ShutdownConfig controls teardown.
type ShutdownConfig struct {
	Grace time.Duration `yaml:"grace,omitempty"` // how long to wait for in-flight sends
}

// GatewayConfig controls the local HTTP/WebSocket surface for the widget.
type GatewayConfig struct {
	Enabled        bool     `yaml:"enabled,omitempty"`
	Port           int      `yaml:"port,omitempty" env:"GATEWAY_PORT"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan"
	Token          string   `yaml:"token,omitempty" env:"GATEWAY_TOKEN"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" env:"LOG_LEVEL"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"`          // "pretty" | "compact" | "json"
}
