package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/t2/internal/wifi"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, wifi.DefaultConnectTimeout, cfg.Wifi.ConnectTimeout)
	assert.Equal(t, wifi.DefaultPollInterval, cfg.Wifi.PollInterval)
	assert.Equal(t, 22, cfg.LAN.Port)
	assert.Equal(t, "root", cfg.LAN.User)
	assert.Equal(t, ".tessel", filepath.Base(cfg.KeyRoot))
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
key_root: /keys
wifi:
  timeout: 30s
  poll_interval: 250
usb:
  bridge: [ssh, bridge-host, --]
  serial: "02a1"
lan:
  host: tessel.local
  port: 2222
  known_hosts: /keys/known_hosts
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/keys", cfg.KeyRoot)
	assert.Equal(t, 30*time.Second, cfg.Wifi.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Wifi.PollInterval)
	assert.Equal(t, []string{"ssh", "bridge-host", "--"}, cfg.USB.Bridge)
	assert.Equal(t, "02a1", cfg.USB.Serial)
	assert.Equal(t, "tessel.local", cfg.LAN.Host)
	assert.Equal(t, 2222, cfg.LAN.Port)
	assert.Equal(t, "/keys/known_hosts", cfg.LAN.KnownHosts)
	assert.Equal(t, "root", cfg.LAN.User, "unset keys keep defaults")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
key_root = "/keys"

[wifi]
timeout = "5s"

[lan]
host = "10.0.0.5"
user = "admin"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/keys", cfg.KeyRoot)
	assert.Equal(t, 5*time.Second, cfg.Wifi.ConnectTimeout)
	assert.Equal(t, wifi.DefaultPollInterval, cfg.Wifi.PollInterval)
	assert.Equal(t, "10.0.0.5", cfg.LAN.Host)
	assert.Equal(t, "admin", cfg.LAN.User)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "bad yaml", file: "c.yaml", content: "wifi: [unclosed"},
		{name: "bad toml", file: "c.toml", content: "key_root = "},
		{name: "bad duration", file: "c.yaml", content: "wifi:\n  timeout: soon\n"},
		{name: "negative duration", file: "c.yaml", content: "wifi:\n  timeout: -1s\n"},
		{name: "unknown format", file: "c.json", content: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		EnvKeyPath:     "/env/keys",
		EnvWifiTimeout: "1500",
		EnvUSBBridge:   "t2-usb exec --",
		EnvLANHost:     "192.168.1.101",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/env/keys", cfg.KeyRoot)
	assert.Equal(t, 1500*time.Millisecond, cfg.Wifi.ConnectTimeout)
	assert.Equal(t, []string{"t2-usb", "exec", "--"}, cfg.USB.Bridge)
	assert.Equal(t, "192.168.1.101", cfg.LAN.Host)

	err = cfg.ApplyEnv(lookupFrom(map[string]string{EnvWifiTimeout: "later"}))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "T2_LAN_HOST=from-dotenv\n")
	t.Setenv(EnvLANHost, "")
	require.NoError(t, os.Unsetenv(EnvLANHost))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv(EnvLANHost))
}

func TestConnectorConfig(t *testing.T) {
	cfg := Default()
	cfg.KeyRoot = "/keys"
	cfg.LAN.Host = "tessel.local"

	cc := cfg.Connector()
	assert.Equal(t, "tessel.local", cc.Host)
	assert.Equal(t, 22, cc.Port)
	assert.Equal(t, filepath.Join("/keys", "id_rsa"), cc.KeyPath)

	cfg.KeyPath = "/elsewhere/board"
	assert.Equal(t, "/elsewhere/board", cfg.Connector().KeyPath)
	assert.Equal(t, "/keys", cfg.Provision().KeyRoot)
}

func TestSaveKeyPath(t *testing.T) {
	t.Run("yaml keeps other settings", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "lan:\n  host: tessel.local\n")

		require.NoError(t, SaveKeyPath(path, "/keys/board"))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/keys/board", cfg.KeyPath)
		assert.Equal(t, "tessel.local", cfg.LAN.Host)
	})

	t.Run("toml", func(t *testing.T) {
		path := writeFile(t, "config.toml", "key_root = \"/keys\"\n")

		require.NoError(t, SaveKeyPath(path, "/keys/board"))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/keys/board", cfg.KeyPath)
		assert.Equal(t, "/keys", cfg.KeyRoot)
	})

	t.Run("creates missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")

		require.NoError(t, SaveKeyPath(path, "/keys/board"))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/keys/board", cfg.KeyPath)
	})
}
