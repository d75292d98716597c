// Package config loads CLI settings from a config file, .env and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/provision"
	"github.com/eugenetaranov/t2/internal/wifi"
)

// Environment variables that override file settings.
const (
	EnvKeyPath     = "T2_KEY_PATH"
	EnvWifiTimeout = "T2_WIFI_TIMEOUT"
	EnvUSBBridge   = "T2_USB_BRIDGE"
	EnvLANHost     = "T2_LAN_HOST"
)

// Config is the merged CLI configuration.
type Config struct {
	KeyRoot string

	// KeyPath selects a private key outside KeyRoot. Its public half is
	// KeyPath + ".pub".
	KeyPath string

	Wifi    wifi.Config
	USB     USB
	LAN     LAN
}

// USB configures the USB bridge.
type USB struct {
	Bridge []string
	Serial string
}

// LAN configures SSH access to a board on the network.
type LAN struct {
	Host string
	Port int
	User string

	// KnownHosts pins board host keys when set.
	KnownHosts string
}

// fileConfig is the on-disk shape shared by YAML and TOML files.
type fileConfig struct {
	KeyRoot string `yaml:"key_root" toml:"key_root"`
	KeyPath string `yaml:"key_path" toml:"key_path"`
	Wifi    struct {
		Timeout      string `yaml:"timeout" toml:"timeout"`
		PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	} `yaml:"wifi" toml:"wifi"`
	USB struct {
		Bridge []string `yaml:"bridge" toml:"bridge"`
		Serial string   `yaml:"serial" toml:"serial"`
	} `yaml:"usb" toml:"usb"`
	LAN struct {
		Host       string `yaml:"host" toml:"host"`
		Port       int    `yaml:"port" toml:"port"`
		User       string `yaml:"user" toml:"user"`
		KnownHosts string `yaml:"known_hosts" toml:"known_hosts"`
	} `yaml:"lan" toml:"lan"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		KeyRoot: provision.DefaultKeyRoot(),
		Wifi:    wifi.DefaultConfig(),
		LAN:     LAN{Port: 22, User: "root"},
	}
}

// DefaultPath returns ~/.tessel/config.yaml.
func DefaultPath() string {
	return filepath.Join(provision.DefaultKeyRoot(), "config.yaml")
}

// Load reads the config file at path over the defaults. A missing file at
// the default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	raw, err := readFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.merge(raw); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var raw fileConfig

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return raw, err
		}
	case ".yaml", ".yml", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return raw, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return raw, err
		}
	default:
		return raw, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	return raw, nil
}

func (c *Config) merge(raw fileConfig) error {
	if v := strings.TrimSpace(raw.KeyRoot); v != "" {
		c.KeyRoot = expandHome(v)
	}
	if v := strings.TrimSpace(raw.KeyPath); v != "" {
		c.KeyPath = expandHome(v)
	}

	if v := strings.TrimSpace(raw.Wifi.Timeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("parse wifi.timeout: %w", err)
		}
		c.Wifi.ConnectTimeout = d
	}
	if v := strings.TrimSpace(raw.Wifi.PollInterval); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("parse wifi.poll_interval: %w", err)
		}
		c.Wifi.PollInterval = d
	}

	if len(raw.USB.Bridge) > 0 {
		c.USB.Bridge = raw.USB.Bridge
	}
	if v := strings.TrimSpace(raw.USB.Serial); v != "" {
		c.USB.Serial = v
	}

	if v := strings.TrimSpace(raw.LAN.Host); v != "" {
		c.LAN.Host = v
	}
	if raw.LAN.Port > 0 {
		c.LAN.Port = raw.LAN.Port
	}
	if v := strings.TrimSpace(raw.LAN.User); v != "" {
		c.LAN.User = v
	}
	if v := strings.TrimSpace(raw.LAN.KnownHosts); v != "" {
		c.LAN.KnownHosts = expandHome(v)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment as seen through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvKeyPath); ok && v != "" {
		c.KeyRoot = expandHome(v)
	}

	if v, ok := lookup(EnvWifiTimeout); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvWifiTimeout, err)
		}
		c.Wifi.ConnectTimeout = d
	}

	if v, ok := lookup(EnvUSBBridge); ok && strings.TrimSpace(v) != "" {
		c.USB.Bridge = strings.Fields(v)
	}

	if v, ok := lookup(EnvLANHost); ok && v != "" {
		c.LAN.Host = v
	}
	return nil
}

// Provision returns the provisioning configuration.
func (c Config) Provision() provision.Config {
	return provision.Config{KeyRoot: c.KeyRoot}
}

// Connector returns the connector configuration for LAN access with the
// provisioned key.
func (c Config) Connector() connector.Config {
	return connector.Config{
		Host:    c.LAN.Host,
		Port:    c.LAN.Port,
		User:    c.LAN.User,
		KeyPath: c.PrivateKey(),
		Bridge:  c.USB.Bridge,
	}
}

// PrivateKey returns the private key in use.
func (c Config) PrivateKey() string {
	if c.KeyPath != "" {
		return c.KeyPath
	}
	return provision.KeyPairAt(c.KeyRoot).Private
}

// SaveKeyPath records keyPath in the config file at path, keeping every
// other setting in it.
func SaveKeyPath(path, keyPath string) error {
	isTOML := strings.EqualFold(filepath.Ext(path), ".toml")
	doc := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil && isTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc["key_path"] = keyPath

	var buf bytes.Buffer
	if isTOML {
		err = toml.NewEncoder(&buf).Encode(doc)
	} else {
		var out []byte
		out, err = yaml.Marshal(doc)
		buf.Write(out)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// parseDuration accepts Go durations and bare integers as milliseconds.
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("duration must be positive: %s", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
