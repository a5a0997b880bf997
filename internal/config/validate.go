package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
// A disabled peer with no token is valid: the bridge simply never connects.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Peer.Enabled {
		if cfg.Peer.Token == "" {
			add("peer.token", "token is required when peer.enabled is true")
		}
		if cfg.Peer.PeerID == "" {
			add("peer.peerId", "peerId is required to send notes")
		}
	}

	validKinds := []string{"discord", "irc"}
	if !slices.Contains(validKinds, cfg.Transport.Kind) {
		add("transport.kind", "must be one of %v, got %q", validKinds, cfg.Transport.Kind)
	}
	if cfg.Transport.SendTimeout < 0 {
		add("transport.sendTimeout", "must not be negative")
	}
	if cfg.Transport.Kind == "irc" {
		irc := cfg.Transport.IRC
		if irc.Server == "" {
			add("transport.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("transport.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("transport.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
	}

	if cfg.Status.Expiry < 0 {
		add("status.expiry", "must not be negative")
	}
	if cfg.Shutdown.Grace < 0 {
		add("shutdown.grace", "must not be negative")
	}

	if cfg.Gateway.Enabled {
		if cfg.Gateway.Port < 1 || cfg.Gateway.Port > 65535 {
			add("gateway.port", "port must be 1-65535, got %d", cfg.Gateway.Port)
		}
		if cfg.Gateway.Token == "" {
			add("gateway.token", "token is required when the gateway is enabled")
		}
	}
	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}

	validLogLevels := []string{"silent", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
