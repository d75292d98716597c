// Package fakedevice provides a scripted board for testing code that talks to a connector.
package fakedevice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eugenetaranov/t2/internal/connector"
)

// Handler scripts the behaviour of one spawned command. It runs in its own
// goroutine; the process exits when the handler returns unless the handler
// already exited or the caller closed it.
type Handler func(p *Process)

// Device is a fake board implementing connector.Connector.
type Device struct {
	kind connector.Kind

	mu       sync.Mutex
	handlers map[string]Handler
	programs map[string]Handler
	execErrs map[string]error
	files    map[string]string
	calls    []string
	live     int
	maxLive  int
	open     bool
}

// New creates a fake board of the given kind.
func New(kind connector.Kind) *Device {
	return &Device{
		kind:     kind,
		handlers: make(map[string]Handler),
		programs: make(map[string]Handler),
		execErrs: make(map[string]error),
		files:    make(map[string]string),
		open:     true,
	}
}

// Handle scripts the command whose space-joined form equals cmd.
func (d *Device) Handle(cmd string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[cmd] = h
}

// HandleProgram scripts every command whose first argument is name.
// Exact matches registered with Handle take precedence.
func (d *Device) HandleProgram(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programs[name] = h
}

// FailExec makes spawning cmd fail with err.
func (d *Device) FailExec(cmd string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execErrs[cmd] = err
}

// SetFile sets the content of a file on the fake board.
func (d *Device) SetFile(path, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = content
}

// File returns the content of a file on the fake board.
func (d *Device) File(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.files[path]
	return content, ok
}

// ServeFiles scripts touch, cat and the `sh -c` file scripts against the fake filesystem.
func (d *Device) ServeFiles() {
	d.HandleProgram("touch", func(p *Process) {
		path := p.Arg(1)
		d.mu.Lock()
		if _, ok := d.files[path]; !ok {
			d.files[path] = ""
		}
		d.mu.Unlock()
	})

	d.HandleProgram("cat", func(p *Process) {
		path := p.Arg(1)
		content, ok := d.File(path)
		if !ok {
			p.WriteStderr(fmt.Sprintf("cat: can't open '%s': No such file or directory\n", path))
			p.ExitWith(1)
			return
		}
		p.WriteStdout(content)
	})

	d.HandleProgram("sh", func(p *Process) {
		script := p.Arg(2)
		if p.Arg(1) != "-c" {
			p.WriteStderr(fmt.Sprintf("sh: unsupported flag %q\n", p.Arg(1)))
			p.ExitWith(2)
			return
		}

		switch {
		case strings.HasPrefix(script, "cat >> "):
			path := unquote(strings.TrimPrefix(script, "cat >> "))
			data := p.ReadStdin()
			d.mu.Lock()
			d.files[path] += data
			d.mu.Unlock()

		case strings.HasPrefix(script, "cat > "):
			path := unquote(strings.TrimPrefix(script, "cat > "))
			data := p.ReadStdin()
			d.SetFile(path, data)

		case strings.HasPrefix(script, "test -e ") && strings.HasSuffix(script, " && echo yes || true"):
			path := unquote(strings.TrimSuffix(strings.TrimPrefix(script, "test -e "), " && echo yes || true"))
			if _, ok := d.File(path); ok {
				p.WriteStdout("yes\n")
			}

		default:
			p.WriteStderr(fmt.Sprintf("sh: unsupported script %q\n", script))
			p.ExitWith(2)
		}
	})
}

// unquote strips the single quotes added for paths with special characters.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `'"'"'`, "'")
	}
	return s
}

// Calls returns every spawned command in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount returns how many times cmd was spawned.
func (d *Device) CallCount(cmd string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, c := range d.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

// MaxInFlight returns the largest number of processes that were live at once.
func (d *Device) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

// Live returns the number of processes that have not exited yet.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Connect reopens the fake channel.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	return nil
}

// Exec spawns a scripted process.
func (d *Device) Exec(ctx context.Context, argv []string) (connector.Process, error) {
	cmd := strings.Join(argv, " ")

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, fmt.Errorf("connection closed")
	}
	d.calls = append(d.calls, cmd)
	if err, ok := d.execErrs[cmd]; ok {
		d.mu.Unlock()
		return nil, err
	}
	h, ok := d.handlers[cmd]
	if !ok && len(argv) > 0 {
		h = d.programs[argv[0]]
	}
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	d.mu.Unlock()

	p := newProcess(d, argv)
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })

	go func() {
		defer stop()
		if h != nil {
			h(p)
		}
		p.Exit()
	}()

	return p, nil
}

// Kind reports the configured kind.
func (d *Device) Kind() connector.Kind {
	return d.kind
}

// Close closes the fake channel; later Exec calls fail.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

// String returns a description of the fake board.
func (d *Device) String() string {
	return fmt.Sprintf("fake://%s", strings.ToLower(string(d.kind)))
}

func (d *Device) exited() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

// Process is a scripted command on the fake board.
type Process struct {
	id   string
	argv []string
	dev  *Device

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	stdinBuf  bytes.Buffer
	stdinDone chan struct{}

	exitCode  int
	exitOnce  sync.Once
	exitedCh  chan struct{}
	closeOnce sync.Once
	closedCh  chan struct{}
}

func newProcess(d *Device, argv []string) *Process {
	p := &Process{
		id:        uuid.NewString(),
		argv:      argv,
		dev:       d,
		stdinDone: make(chan struct{}),
		exitedCh:  make(chan struct{}),
		closedCh:  make(chan struct{}),
	}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()

	go func() {
		_, _ = io.Copy(&p.stdinBuf, p.stdinR)
		close(p.stdinDone)
	}()

	return p
}

// Arg returns argv[i] or "" when out of range.
func (p *Process) Arg(i int) string {
	if i < 0 || i >= len(p.argv) {
		return ""
	}
	return p.argv[i]
}

// Command returns the space-joined command line.
func (p *Process) Command() string {
	return strings.Join(p.argv, " ")
}

// WriteStdout emits s on stdout. It blocks until the caller reads it and
// returns false if the caller has released the process.
func (p *Process) WriteStdout(s string) bool {
	_, err := io.WriteString(p.stdoutW, s)
	return err == nil
}

// WriteStderr emits s on stderr.
func (p *Process) WriteStderr(s string) bool {
	_, err := io.WriteString(p.stderrW, s)
	return err == nil
}

// ReadStdin blocks until the caller closes stdin and returns everything written.
func (p *Process) ReadStdin() string {
	<-p.stdinDone
	return p.stdinBuf.String()
}

// Released is closed once the caller closes the process handle.
func (p *Process) Released() <-chan struct{} {
	return p.closedCh
}

// ExitWith exits with the given status.
func (p *Process) ExitWith(code int) {
	p.exitOnce.Do(func() {
		p.exitCode = code
		p.stdoutW.Close()
		p.stderrW.Close()
		p.dev.exited()
		close(p.exitedCh)
	})
}

// Exit exits with status 0.
func (p *Process) Exit() {
	p.ExitWith(0)
}

// ID returns the process identifier.
func (p *Process) ID() string { return p.id }

// Stdin returns the input stream.
func (p *Process) Stdin() io.WriteCloser { return p.stdinW }

// Stdout returns the output stream.
func (p *Process) Stdout() io.Reader { return p.stdoutR }

// Stderr returns the error stream.
func (p *Process) Stderr() io.Reader { return p.stderrR }

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	<-p.exitedCh
	if p.exitCode != 0 {
		return &connector.ExitError{Code: p.exitCode}
	}
	return nil
}

// Close releases the handle and kills the process if it is still running.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		close(p.closedCh)
		p.stdinW.Close()
		p.stdoutR.CloseWithError(io.ErrClosedPipe)
		p.stderrR.CloseWithError(io.ErrClosedPipe)
		p.ExitWith(-1)
	})
	return nil
}

// Ensure the fakes implement the connector interfaces.
var (
	_ connector.Connector = (*Device)(nil)
	_ connector.Process   = (*Process)(nil)
)
