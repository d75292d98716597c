// Package connector defines the command channel to a board and the processes spawned over it.
package connector

import (
	"context"
	"fmt"
	"io"
)

// Kind identifies the transport a connector talks over.
type Kind string

const (
	// KindUSB is a board attached over USB.
	KindUSB Kind = "USB"

	// KindLAN is a board reached over the network.
	KindLAN Kind = "LAN"
)

// Connector is the interface for connecting to a board and spawning commands on it.
type Connector interface {
	// Connect opens the command channel.
	Connect(ctx context.Context) error

	// Exec spawns argv on the board and returns its live process handle.
	// The process is killed if ctx is cancelled before it exits.
	Exec(ctx context.Context, argv []string) (Process, error)

	// Kind reports the transport kind.
	Kind() Kind

	// Close terminates the channel.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

// Process is a handle to one command running on the board.
//
// Stdout and Stderr reach EOF once the command exits. Wait must only be
// called after both have been drained; it returns the terminal close signal.
type Process interface {
	// ID is a unique identifier used to correlate trace output.
	ID() string

	// Stdin is the command's input; closing it delivers EOF.
	Stdin() io.WriteCloser

	// Stdout is the command's output stream.
	Stdout() io.Reader

	// Stderr is the command's error stream.
	Stderr() io.Reader

	// Wait blocks until the command has exited. A non-zero exit status is
	// reported as *ExitError.
	Wait() error

	// Close releases the handle, killing the command if it is still running.
	Close() error
}

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote process exited with status %d", e.Code)
}

// Config holds common configuration for connectors.
type Config struct {
	// Host is the board hostname or IP address (LAN only).
	Host string

	// Port is the SSH port (LAN only).
	Port int

	// User is the username for authentication (LAN only).
	User string

	// KeyPath is the private key used to authenticate (LAN only).
	KeyPath string

	// Bridge is the program that forwards argv to a USB-attached board.
	Bridge []string
}
