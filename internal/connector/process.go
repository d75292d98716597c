package connector

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CmdProcess adapts a local *exec.Cmd that forwards to the board into a Process.
type CmdProcess struct {
	id     string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	log    zerolog.Logger

	waitOnce sync.Once
	waitErr  error
	exited   atomic.Bool
}

// StartCmd wires pipes to cmd and starts it.
func StartCmd(cmd *exec.Cmd, log zerolog.Logger) (*CmdProcess, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	p := &CmdProcess{
		id:     uuid.NewString(),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	p.log = log.With().Str("process", p.id).Logger()
	p.log.Debug().Strs("argv", cmd.Args).Int("pid", cmd.Process.Pid).Msg("spawned")

	return p, nil
}

// ID returns the process identifier.
func (p *CmdProcess) ID() string { return p.id }

// Stdin returns the input stream.
func (p *CmdProcess) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the output stream.
func (p *CmdProcess) Stdout() io.Reader { return p.stdout }

// Stderr returns the error stream.
func (p *CmdProcess) Stderr() io.Reader { return p.stderr }

// Wait waits for the command to exit. It is safe to call more than once.
func (p *CmdProcess) Wait() error {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exited.Store(true)

		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			p.waitErr = &ExitError{Code: exitErr.ExitCode()}
		default:
			p.waitErr = fmt.Errorf("failed to wait for command: %w", err)
		}
		p.log.Debug().Err(p.waitErr).Msg("closed")
	})
	return p.waitErr
}

// Close kills the command if it is still running and reaps it.
func (p *CmdProcess) Close() error {
	_ = p.stdin.Close()
	if !p.exited.Load() && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	err := p.Wait()

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// Ensure CmdProcess implements the Process interface.
var _ Process = (*CmdProcess)(nil)
