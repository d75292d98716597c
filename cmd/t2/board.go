package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"

	"github.com/eugenetaranov/t2/internal/config"
	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/connector/docker"
	"github.com/eugenetaranov/t2/internal/connector/lan"
	"github.com/eugenetaranov/t2/internal/connector/usb"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/output"
	"github.com/eugenetaranov/t2/internal/tessel"
)

// session is the state shared by commands that talk to a board.
type session struct {
	cfg    config.Config
	out    *output.Output
	trace  zerolog.Logger
	board  *tessel.Tessel
	target string
}

// newOutput creates the terminal output honoring --no-color and --debug.
func newOutput() *output.Output {
	out := output.New(colorable.NewColorableStdout())
	if noColor {
		out.SetColor(false)
	}
	out.SetDebug(debug)
	return out
}

// newTrace returns the transport trace logger, enabled by --debug.
func newTrace() zerolog.Logger {
	if !debug {
		return zerolog.Nop()
	}
	w := zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStderr(),
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// loadConfig merges the config file, .env, the environment and the flags.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if lanHost != "" {
		cfg.LAN.Host = lanHost
	}
	if serial != "" {
		cfg.USB.Serial = serial
	}
	if len(bridge) > 0 {
		cfg.USB.Bridge = bridge
	}
	if keyPath != "" {
		cfg.KeyPath = keyPath
	}
	return cfg, nil
}

// newConnector picks the transport from the configuration.
func newConnector(cfg config.Config, trace zerolog.Logger) (connector.Connector, error) {
	switch {
	case container != "":
		return docker.New(container,
			docker.WithKind(connector.KindUSB),
			docker.WithLogger(trace),
		), nil
	case cfg.LAN.Host != "":
		return lan.New(cfg.Connector(),
			lan.WithKnownHosts(cfg.LAN.KnownHosts),
			lan.WithLogger(trace),
		)
	default:
		return usb.New(
			usb.WithBridge(cfg.USB.Bridge...),
			usb.WithSerial(cfg.USB.Serial),
			usb.WithLogger(trace),
		), nil
	}
}

// openSession loads configuration and connects to the board.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s := &session{
		cfg:   cfg,
		out:   newOutput(),
		trace: newTrace(),
	}

	conn, err := newConnector(cfg, s.trace)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", conn, err)
	}

	tcfg := tessel.Config{
		Wifi:      cfg.Wifi,
		Provision: cfg.Provision(),
	}
	if debug {
		tcfg.Trace = &s.trace
	}

	s.board = tessel.New(conn, tcfg, s.out)
	s.target = conn.String()
	if cfg.KeyPath != "" {
		if err := s.board.SetDefaultKey(cfg.KeyPath); err != nil {
			_ = s.board.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the board connection.
func (s *session) Close() error {
	return s.board.Close()
}

// withBoard runs fn against a connected board and reports its error in the
// board's own words.
func withBoard(fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		newOutput().Error("%v", err)
		return err
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		s.out.Error("%s", errs.Message(err))
		s.trace.Debug().Err(err).Msg("command failed")
		return err
	}
	return nil
}
