package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOTEBRIDGE_"

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets secrets be stored as ${ENV_VAR} references.
func expandSensitiveFields(cfg *Config) {
	cfg.Peer.Token = expandEnvVars(cfg.Peer.Token)
	cfg.Gateway.Token = expandEnvVars(cfg.Gateway.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file yields defaults, which leave messaging disabled.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// WriteDefault writes the default config to path unless a file already exists.
// It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return true, Save(path, Defaults())
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial file.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = d.Transport.Kind
	}
	if cfg.Transport.SendTimeout <= 0 {
		cfg.Transport.SendTimeout = d.Transport.SendTimeout
	}
	if cfg.Status.Idle == "" {
		cfg.Status.Idle = d.Status.Idle
	}
	if cfg.Status.Expiry <= 0 {
		cfg.Status.Expiry = d.Status.Expiry
	}
	if cfg.Shutdown.Grace <= 0 {
		cfg.Shutdown.Grace = d.Shutdown.Grace
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads NOTEBRIDGE_* environment variables over the file values.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return &ConfigError{Message: "invalid environment override: " + err.Error()}
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Transport.Kind = strings.ToLower(cfg.Transport.Kind)
	return nil
}
