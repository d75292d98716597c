// Package tessel ties a board connection to the wifi and provisioning workflows.
package tessel

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/executor"
	"github.com/eugenetaranov/t2/internal/provision"
	"github.com/eugenetaranov/t2/internal/wifi"
)

// Logger receives user-facing messages.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Config configures a Tessel.
type Config struct {
	Wifi      wifi.Config
	Provision provision.Config

	// Trace receives transport level debug events. Nil discards them.
	Trace *zerolog.Logger
}

// Tessel is a connected board.
type Tessel struct {
	conn      connector.Connector
	exec      *executor.Executor
	wifi      *wifi.Manager
	provision *provision.Provisioner
}

// New wraps an open connection.
func New(conn connector.Connector, cfg Config, log Logger) *Tessel {
	var opts []executor.Option
	if cfg.Trace != nil {
		opts = append(opts, executor.WithLogger(*cfg.Trace))
	}

	exec := executor.New(conn, opts...)
	return &Tessel{
		conn:      conn,
		exec:      exec,
		wifi:      wifi.New(exec, cfg.Wifi, log),
		provision: provision.New(exec, cfg.Provision, log),
	}
}

// Connection returns the underlying connection.
func (t *Tessel) Connection() connector.Connector {
	return t.conn
}

// Executor returns the executor shared by all workflows.
func (t *Tessel) Executor() *executor.Executor {
	return t.exec
}

// ProvisionTessel authorizes this computer's key on the board.
func (t *Tessel) ProvisionTessel(ctx context.Context) (provision.Outcome, error) {
	return t.provision.Provision(ctx)
}

// SetDefaultKey selects the key pair used by ProvisionTessel.
func (t *Tessel) SetDefaultKey(path string) error {
	return t.provision.SetDefaultKey(path)
}

// FindAvailableNetworks lists visible networks, strongest first.
func (t *Tessel) FindAvailableNetworks(ctx context.Context) ([]wifi.Network, error) {
	return t.wifi.FindAvailableNetworks(ctx)
}

// ConnectToNetwork joins the network described by creds.
func (t *Tessel) ConnectToNetwork(ctx context.Context, creds wifi.Credentials) error {
	return t.wifi.ConnectToNetwork(ctx, creds)
}

// SetWiFiState turns the radio on or off.
func (t *Tessel) SetWiFiState(ctx context.Context, enabled bool) error {
	return t.wifi.SetWiFiState(ctx, enabled)
}

// CurrentNetwork reports the network the board is associated with.
func (t *Tessel) CurrentNetwork(ctx context.Context) (wifi.Network, bool, error) {
	return t.wifi.Current(ctx)
}

// Close closes the connection.
func (t *Tessel) Close() error {
	return t.conn.Close()
}
