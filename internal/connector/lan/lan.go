// Package lan provides a connector for a board reached over the network.
//
// Commands run in SSH sessions authenticated with the key pair that
// provisioning installs on the board.
package lan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/connector"
)

const (
	defaultPort    = 22
	defaultUser    = "root"
	defaultTimeout = 10 * time.Second
)

// Connector runs board commands over SSH.
type Connector struct {
	host       string
	port       int
	user       string
	keyPath    string
	knownHosts string
	timeout    time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// Option configures the LAN connector.
type Option func(*Connector)

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) {
		c.timeout = d
	}
}

// WithKnownHosts verifies the board's host key against a known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Connector) {
		c.knownHosts = path
	}
}

// WithLogger sets the trace logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) {
		c.log = log
	}
}

// New creates a new LAN connector from cfg.
func New(cfg connector.Config, opts ...Option) (*Connector, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("key path is required")
	}

	c := &Connector{
		host:    cfg.Host,
		port:    cfg.Port,
		user:    cfg.User,
		keyPath: cfg.KeyPath,
		timeout: defaultTimeout,
		log:     zerolog.Nop(),
	}
	if c.port == 0 {
		c.port = defaultPort
	}
	if c.user == "" {
		c.user = defaultUser
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.With().Str("connector", c.String()).Logger()
	return c, nil
}

// Connect dials the board and authenticates with the local private key.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil // Already connected
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return err
	}

	keyData, err := os.ReadFile(c.keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: c.user,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.timeout,
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	c.client = ssh.NewClient(sshConn, chans, reqs)
	c.log.Debug().Msg("connected")
	return nil
}

// Exec starts argv in a new SSH session.
func (c *Connector) Exec(ctx context.Context, argv []string) (connector.Process, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	p := &process{id: uuid.NewString(), session: session}
	if p.stdin, err = session.StdinPipe(); err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if p.stdout, err = session.StdoutPipe(); err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if p.stderr, err = session.StderrPipe(); err != nil {
		session.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	line := commands.Command(argv).Shell()
	if err := session.Start(line); err != nil {
		session.Close()
		return nil, fmt.Errorf("start %q: %w", line, err)
	}

	p.log = c.log.With().Str("process", p.id).Logger()
	p.log.Debug().Str("cmd", line).Msg("spawned")

	// Bound the session by ctx like exec.CommandContext does for local processes.
	p.stop = context.AfterFunc(ctx, func() {
		_ = p.Close()
	})

	return p, nil
}

// hostKeyCallback checks host keys against the configured known_hosts file.
// Without one any host key is accepted: boards regenerate their host key on
// every firmware flash.
func (c *Connector) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.knownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(c.knownHosts)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return callback, nil
}

// Kind reports KindLAN.
func (c *Connector) Kind() connector.Kind {
	return connector.KindLAN
}

// Close closes the SSH connection.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	return fmt.Sprintf("lan://%s@%s:%d", c.user, c.host, c.port)
}

// process is a command running in an SSH session.
type process struct {
	id      string
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
	log     zerolog.Logger
	stop    func() bool

	waitOnce sync.Once
	waitErr  error
	closed   atomic.Bool
}

func (p *process) ID() string            { return p.id }
func (p *process) Stdin() io.WriteCloser { return p.stdin }
func (p *process) Stdout() io.Reader     { return p.stdout }
func (p *process) Stderr() io.Reader     { return p.stderr }

func (p *process) Wait() error {
	p.waitOnce.Do(func() {
		err := p.session.Wait()

		var exitErr *ssh.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			p.waitErr = &connector.ExitError{Code: exitErr.ExitStatus()}
		default:
			p.waitErr = fmt.Errorf("session wait: %w", err)
		}
		if p.stop != nil {
			p.stop()
		}
		p.log.Debug().Err(p.waitErr).Msg("closed")
	})
	return p.waitErr
}

func (p *process) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = p.stdin.Close()
	err := p.session.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
