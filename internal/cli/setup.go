package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/notebridge/internal/bridge"
	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/soyeahso/notebridge/internal/transport"
)

// loadConfig reads and validates the config file. The --log-level flag wins
// over the file; otherwise the root logger is rebuilt from the logging section.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	log = logging.New(logging.Writer(cfg.Logging.ConsoleStyle, os.Stderr), cfg.Logging.Level)

	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// newBridge builds the engine for cfg with the selected transport.
func newBridge(cfg config.Config, opts ...bridge.Option) (*bridge.Bridge, error) {
	tr, err := transport.New(cfg.Transport, log)
	if err != nil {
		return nil, err
	}
	opts = append(bridge.FromConfig(&cfg, log), opts...)
	return bridge.Initialize(cfg.Credentials(), tr, opts...), nil
}
