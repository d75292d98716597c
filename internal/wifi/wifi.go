// Package wifi configures the board's wireless station interface.
package wifi

import (
	"time"

	"github.com/eugenetaranov/t2/internal/executor"
)

const (
	// DefaultConnectTimeout bounds how long the board may take to associate.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPollInterval spaces out repeated wifi info queries.
	DefaultPollInterval = 500 * time.Millisecond
)

// Logger receives the user-facing messages of wifi operations.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Config holds tunables of the wifi manager.
type Config struct {
	// ConnectTimeout bounds the association check.
	ConnectTimeout time.Duration

	// PollInterval is the pause before querying wifi info again after a
	// query closed without a verdict.
	PollInterval time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// Credentials describe the network to join.
type Credentials struct {
	// SSID is required.
	SSID string

	// Password is nil for open networks. A nil password skips the password
	// step entirely.
	Password *string

	// Security overrides the derived encryption mode when set.
	Security string
}

// Manager drives wireless configuration over an executor. Commands are
// issued one at a time; a failed step aborts the operation without undoing
// the steps already applied.
type Manager struct {
	exec *executor.Executor
	cfg  Config
	log  Logger
}

// New creates a manager. Zero durations in cfg fall back to the defaults.
func New(exec *executor.Executor, cfg Config, log Logger) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Manager{exec: exec, cfg: cfg, log: log}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}
