// Package executor runs commands on a board and collects their results.
//
// Commands complete when the remote process closes. Output on stderr before
// the close marks the command as failed; the exit status alone does not.
package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/errs"
)

// ErrClosedWithoutMatch is returned by Watch when the process closes before
// the matcher settles.
var ErrClosedWithoutMatch = errors.New("process closed before a match")

// Matcher inspects everything a process has written to stdout so far.
// It returns done=true to stop watching, or an error to fail.
type Matcher func(stdout string) (done bool, err error)

// Executor runs commands over a connector.
type Executor struct {
	conn connector.Connector
	log  zerolog.Logger
}

// Option configures the executor.
type Option func(*Executor)

// WithLogger sets the trace logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// New creates an executor on conn.
func New(conn connector.Connector, opts ...Option) *Executor {
	e := &Executor{
		conn: conn,
		log:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Connector returns the underlying connector.
func (e *Executor) Connector() connector.Connector {
	return e.conn
}

// Buffered runs cmd and returns its trimmed stdout once the process closes.
func (e *Executor) Buffered(ctx context.Context, cmd commands.Command) (string, error) {
	proc, err := e.Streaming(ctx, cmd)
	if err != nil {
		return "", err
	}
	return e.Receive(ctx, proc)
}

// BufferedRaw is Buffered without trimming, for callers that care about
// trailing newlines.
func (e *Executor) BufferedRaw(ctx context.Context, cmd commands.Command) (string, error) {
	proc, err := e.Streaming(ctx, cmd)
	if err != nil {
		return "", err
	}
	return e.receive(ctx, proc)
}

// Streaming spawns cmd and returns the live process. The caller owns the
// handle and must either Receive it or Close it.
func (e *Executor) Streaming(ctx context.Context, cmd commands.Command) (connector.Process, error) {
	proc, err := e.conn.Exec(ctx, cmd)
	if err != nil {
		return nil, errs.E(errs.Op("exec"), errs.KindTransport, cmd.String(), err)
	}

	e.log.Debug().Str("process", proc.ID()).Str("cmd", cmd.String()).Msg("exec")
	return proc, nil
}

// Receive waits for an already-open process to close and returns its
// trimmed stdout. Text on stderr turns the result into a protocol failure
// carrying that text. The process is released before Receive returns.
func (e *Executor) Receive(ctx context.Context, proc connector.Process) (string, error) {
	out, err := e.receive(ctx, proc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Executor) receive(ctx context.Context, proc connector.Process) (string, error) {
	defer proc.Close()

	var stdout, stderr bytes.Buffer
	var outErr, errErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, outErr = io.Copy(&stdout, proc.Stdout())
	}()
	go func() {
		defer wg.Done()
		_, errErr = io.Copy(&stderr, proc.Stderr())
	}()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		_ = proc.Close()
		<-drained
	}
	if err := ctx.Err(); err != nil {
		return "", contextError(err)
	}

	return e.settle(proc, stdout.String(), stderr.String(), errors.Join(outErr, errErr))
}

// Watch feeds stdout of an open process to match as it arrives. It returns
// nil as soon as match reports done, match's error if it fails, and
// ErrClosedWithoutMatch if the process closes first. The process is
// released before Watch returns.
func (e *Executor) Watch(ctx context.Context, proc connector.Process, match Matcher) error {
	defer proc.Close()

	quit := make(chan struct{})
	defer close(quit)

	chunks := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, err := proc.Stdout().Read(buf)
			if n > 0 {
				select {
				case chunks <- string(buf[:n]):
				case <-quit:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	var stderr bytes.Buffer
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		_, _ = io.Copy(&stderr, proc.Stderr())
	}()

	var seen strings.Builder
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				<-stderrDone
				if err := ctx.Err(); err != nil {
					return err
				}
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if _, err := e.settle(proc, seen.String(), stderr.String(), err); err != nil {
					return err
				}
				return ErrClosedWithoutMatch
			}

			seen.WriteString(chunk)
			done, err := match(seen.String())
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// settle turns the drained streams and close status into a result.
func (e *Executor) settle(proc connector.Process, stdout, stderr string, readErr error) (string, error) {
	waitErr := proc.Wait()

	log := e.log.Debug().Str("process", proc.ID())
	var exitErr *connector.ExitError
	if errors.As(waitErr, &exitErr) {
		log = log.Int("exit_code", exitErr.Code)
		waitErr = nil
	}
	log.Int("stdout_bytes", len(stdout)).Int("stderr_bytes", len(stderr)).Msg("closed")

	if msg := strings.TrimSpace(stderr); msg != "" {
		return "", errs.E(errs.Op("exec"), errs.KindProtocol, msg)
	}
	if readErr != nil {
		return "", errs.E(errs.Op("exec"), errs.KindTransport, "read output", readErr)
	}
	if waitErr != nil {
		return "", errs.E(errs.Op("exec"), errs.KindTransport, waitErr)
	}

	return stdout, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.E(errs.Op("exec"), errs.KindTimeout, "Timed out waiting for the remote process", err)
	}
	return errs.E(errs.Op("exec"), err)
}
