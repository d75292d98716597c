// Package docker provides a connector that treats a Docker container as a board.
//
// It is used to emulate a board in integration tests and demos: commands run
// through `docker exec -i`, and the reported kind is configurable so a
// container can stand in for a USB-attached board.
package docker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/t2/internal/connector"
)

// Connector executes commands inside a Docker container.
type Connector struct {
	container string
	user      string
	kind      connector.Kind
	env       map[string]string
	log       zerolog.Logger
}

// Option configures the Docker connector.
type Option func(*Connector)

// WithUser sets the user for command execution.
func WithUser(user string) Option {
	return func(c *Connector) {
		c.user = user
	}
}

// WithKind sets the kind the container reports.
func WithKind(kind connector.Kind) Option {
	return func(c *Connector) {
		c.kind = kind
	}
}

// WithEnv adds an environment variable for command execution.
func WithEnv(key, value string) Option {
	return func(c *Connector) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

// WithLogger sets the trace logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) {
		c.log = log
	}
}

// New creates a new Docker connector for the specified container.
func New(container string, opts ...Option) *Connector {
	c := &Connector{
		container: container,
		kind:      connector.KindLAN,
		env:       make(map[string]string),
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.With().Str("connector", c.String()).Logger()
	return c
}

// Connect verifies the container exists and is running.
func (c *Connector) Connect(ctx context.Context) error {
	// Check if docker is available
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker command not found: %w", err)
	}

	// Check if container exists and is running
	cmd := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", c.container)
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("container '%s' not found or not accessible: %w", c.container, err)
	}

	if strings.TrimSpace(string(output)) != "true" {
		return fmt.Errorf("container '%s' is not running", c.container)
	}

	return nil
}

// Exec spawns argv inside the container with stdin attached.
func (c *Connector) Exec(ctx context.Context, argv []string) (connector.Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	args := c.buildExecArgs(argv)
	proc, err := connector.StartCmd(exec.CommandContext(ctx, "docker", args...), c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to execute command in container: %w", err)
	}
	return proc, nil
}

// buildExecArgs builds the docker exec command arguments.
func (c *Connector) buildExecArgs(argv []string) []string {
	args := []string{"exec"}

	// Add interactive flag for proper stdin handling
	args = append(args, "-i")

	// Add user if specified
	if c.user != "" {
		args = append(args, "-u", c.user)
	}

	// Add environment variables
	for k, v := range c.env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	// Add container and command
	args = append(args, c.container)
	return append(args, argv...)
}

// Kind reports the configured kind.
func (c *Connector) Kind() connector.Kind {
	return c.kind
}

// Close is a no-op for Docker connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	desc := fmt.Sprintf("docker://%s", c.container)
	if c.user != "" {
		desc = fmt.Sprintf("docker://%s@%s", c.user, c.container)
	}
	return desc
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
