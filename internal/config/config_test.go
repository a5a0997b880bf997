package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.Peer.Enabled)
	assert.Empty(t, cfg.Peer.Token)
	assert.Equal(t, "discord", cfg.Transport.Kind)
	assert.Equal(t, 15*time.Second, cfg.Transport.SendTimeout)
	assert.Equal(t, "Ready", cfg.Status.Idle)
	assert.Equal(t, 5*time.Second, cfg.Status.Expiry)
	assert.Equal(t, 3*time.Second, cfg.Shutdown.Grace)
	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.False(t, cfg.Gateway.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.False(t, cfg.Credentials().Usable(), "missing config must yield a disabled configuration")
	assert.Equal(t, "Ready", cfg.Status.Idle)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
peer:
  enabled: true
  token: abc.def
  peerId: "123456789012345678"
transport:
  kind: irc
  sendTimeout: 20s
  irc:
    server: irc.libera.chat
    port: 6697
    nick: notebot
    useTLS: true
status:
  expiry: 2s
gateway:
  enabled: true
  port: 9999
  token: gw-secret
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	creds := cfg.Credentials()
	assert.True(t, creds.Enabled)
	assert.Equal(t, "abc.def", creds.Token)
	assert.Equal(t, "123456789012345678", creds.PeerID)

	assert.Equal(t, "irc", cfg.Transport.Kind)
	assert.Equal(t, 20*time.Second, cfg.Transport.SendTimeout)
	assert.Equal(t, "irc.libera.chat", cfg.Transport.IRC.Server)
	assert.Equal(t, 6697, cfg.Transport.IRC.Port)
	assert.True(t, cfg.Transport.IRC.UseTLS)
	assert.Equal(t, 2*time.Second, cfg.Status.Expiry)
	assert.Equal(t, "Ready", cfg.Status.Idle, "unset fields fall back to defaults")
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOTEBRIDGE_ENABLED", "true")
	t.Setenv("NOTEBRIDGE_TOKEN", "env-token")
	t.Setenv("NOTEBRIDGE_PEER_ID", "42")
	t.Setenv("NOTEBRIDGE_LOG_LEVEL", "TRACE")
	t.Setenv("NOTEBRIDGE_GATEWAY_PORT", "12345")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.True(t, cfg.Credentials().Usable())
	assert.Equal(t, "42", cfg.Peer.PeerID)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, 12345, cfg.Gateway.Port)
}

func TestLoadInvalidEnvOverride(t *testing.T) {
	t.Setenv("NOTEBRIDGE_GATEWAY_PORT", "not-a-port")

	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadExpandsSecretReferences(t *testing.T) {
	t.Setenv("MY_BOT_TOKEN", "expanded-secret")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("peer:\n  enabled: true\n  token: ${MY_BOT_TOKEN}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Peer.Token)
}

func TestExpandEnvVarsLeavesUnsetReferences(t *testing.T) {
	assert.Equal(t, "${NOTEBRIDGE_SURELY_UNSET}", expandEnvVars("${NOTEBRIDGE_SURELY_UNSET}"))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written, "existing config must not be overwritten")
}

func TestSaveRoundTripsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Defaults()
	cfg.Status.Expiry = 750 * time.Millisecond
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "750ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, loaded.Status.Expiry)
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateEnabledPeer(t *testing.T) {
	cfg := Defaults()
	cfg.Peer.Enabled = true
	issues := Validate(&cfg)

	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Contains(t, paths, "peer.token")
	assert.Contains(t, paths, "peer.peerId")
}

func TestValidateTransport(t *testing.T) {
	cfg := Defaults()
	cfg.Transport.Kind = "telegram"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "transport.kind", issues[0].Path)

	cfg.Transport.Kind = "irc"
	issues = Validate(&cfg)
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.ElementsMatch(t, []string{"transport.irc.server", "transport.irc.nick"}, paths)
}

func TestValidateGateway(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Enabled = true
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.token", issues[0].Path)

	cfg.Gateway.Token = "x"
	cfg.Gateway.Bind = "everywhere"
	issues = Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.bind", issues[0].Path)
}

func TestValidationIssueString(t *testing.T) {
	assert.Equal(t, "peer.token: required", ValidationIssue{Path: "peer.token", Message: "required"}.String())
}

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("NOTEBRIDGE_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)

	require.NoError(t, paths.EnsureDirs())
	info, err := os.Stat(paths.Logs)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
