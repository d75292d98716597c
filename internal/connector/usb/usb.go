// Package usb provides a connector for a board attached over USB.
//
// The USB link itself is driven by a bridge program on the host: every
// command is spawned as `<bridge...> <argv...>` and the bridge relays
// stdin, stdout, stderr and the exit status of the remote process.
package usb

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/t2/internal/connector"
)

// DefaultBridge is the bridge used when none is configured.
var DefaultBridge = []string{"t2-usb", "exec", "--"}

// Connector spawns board commands through a USB bridge program.
type Connector struct {
	bridge []string
	serial string
	log    zerolog.Logger

	mu     sync.Mutex
	opened bool
}

// Option configures the USB connector.
type Option func(*Connector)

// WithBridge sets the bridge program and its leading arguments.
func WithBridge(argv ...string) Option {
	return func(c *Connector) {
		if len(argv) > 0 {
			c.bridge = argv
		}
	}
}

// WithSerial selects a board by serial number when several are attached.
func WithSerial(serial string) Option {
	return func(c *Connector) {
		c.serial = serial
	}
}

// WithLogger sets the trace logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) {
		c.log = log
	}
}

// New creates a new USB connector.
func New(opts ...Option) *Connector {
	c := &Connector{
		bridge: DefaultBridge,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.With().Str("connector", c.String()).Logger()
	return c
}

// Connect verifies the bridge program is available.
func (c *Connector) Connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := exec.LookPath(c.bridge[0]); err != nil {
		return fmt.Errorf("usb bridge %q not found: %w", c.bridge[0], err)
	}

	c.mu.Lock()
	c.opened = true
	c.mu.Unlock()

	c.log.Debug().Msg("connected")
	return nil
}

// Exec spawns argv on the board through the bridge.
func (c *Connector) Exec(ctx context.Context, argv []string) (connector.Process, error) {
	c.mu.Lock()
	opened := c.opened
	c.mu.Unlock()
	if !opened {
		return nil, fmt.Errorf("usb connection is not open")
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	args := c.buildArgs(argv)
	proc, err := connector.StartCmd(exec.CommandContext(ctx, c.bridge[0], args...), c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %q over usb: %w", strings.Join(argv, " "), err)
	}
	return proc, nil
}

// buildArgs prefixes argv with the bridge arguments.
func (c *Connector) buildArgs(argv []string) []string {
	args := append([]string{}, c.bridge[1:]...)
	if c.serial != "" {
		args = append([]string{"--serial", c.serial}, args...)
	}
	return append(args, argv...)
}

// Kind reports KindUSB.
func (c *Connector) Kind() connector.Kind {
	return connector.KindUSB
}

// Close marks the connection closed.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.opened = false
	c.mu.Unlock()
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	if c.serial != "" {
		return fmt.Sprintf("usb://%s", c.serial)
	}
	return "usb://default"
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
