// Package command provides a module for running shell commands on the board.
package command

import (
	"context"
	"fmt"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/module"
)

func init() {
	module.Register(&Module{})
}

// Module runs shell commands on the board.
type Module struct{}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "command"
}

// Run executes the command module.
//
// Parameters:
//   - cmd (string, required): The shell command to run
//   - chdir (string): Change to this directory before running
//   - creates (string): Skip if this path exists on the board
//   - removes (string): Only run if this path exists on the board
func (m *Module) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	cmd, err := module.RequireString(params, "cmd")
	if err != nil {
		return nil, err
	}

	chdir := module.GetString(params, "chdir", "")
	creates := module.GetString(params, "creates", "")
	removes := module.GetString(params, "removes", "")

	if creates != "" {
		exists, err := pathExists(ctx, board, creates)
		if err != nil {
			return nil, fmt.Errorf("failed to check 'creates' path: %w", err)
		}
		if exists {
			return module.Unchanged(fmt.Sprintf("skipped, '%s' exists", creates)), nil
		}
	}

	if removes != "" {
		exists, err := pathExists(ctx, board, removes)
		if err != nil {
			return nil, fmt.Errorf("failed to check 'removes' path: %w", err)
		}
		if !exists {
			return module.Unchanged(fmt.Sprintf("skipped, '%s' does not exist", removes)), nil
		}
	}

	script := cmd
	if chdir != "" {
		script = fmt.Sprintf("cd %s && %s", commands.Command{chdir}.Shell(), cmd)
	}

	stdout, err := board.Executor().Buffered(ctx, commands.Script(script))
	if err != nil {
		if errs.Is(err, errs.KindProtocol) {
			return nil, &CommandError{Cmd: cmd, Stderr: errs.Message(err)}
		}
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}

	return module.ChangedWithData("command executed successfully", map[string]any{
		"cmd":    cmd,
		"stdout": stdout,
	}), nil
}

// CommandError represents a command that wrote to stderr.
type CommandError struct {
	Cmd    string
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s\nstderr: %s", e.Cmd, e.Stderr)
}

// pathExists checks if a file or directory exists on the board.
func pathExists(ctx context.Context, board module.Board, path string) (bool, error) {
	out, err := board.Executor().Buffered(ctx, commands.PathExists(path))
	if err != nil {
		return false, err
	}
	return out == "yes", nil
}

// Ensure Module implements the module.Module interface.
var _ module.Module = (*Module)(nil)
