// Package copy provides a module for writing files on the board.
package copy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/executor"
	"github.com/eugenetaranov/t2/internal/module"
)

func init() {
	module.Register(&Module{})
}

// Module writes files to the board.
type Module struct{}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "copy"
}

// Run executes the copy module.
//
// Parameters:
//   - dest (string, required): Destination path on the board
//   - src (string): Source file path on this computer (mutually exclusive with content)
//   - content (string): Inline content to write (mutually exclusive with src)
//   - force (bool): Overwrite a destination with different content (default: true)
func (m *Module) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	dest, err := module.RequireString(params, "dest")
	if err != nil {
		return nil, err
	}

	src := module.GetString(params, "src", "")
	content := module.GetString(params, "content", "")
	force, err := module.GetBool(params, "force", true)
	if err != nil {
		return nil, err
	}

	if src == "" && content == "" {
		return nil, fmt.Errorf("either 'src' or 'content' parameter is required")
	}
	if src != "" && content != "" {
		return nil, fmt.Errorf("'src' and 'content' are mutually exclusive")
	}

	data := []byte(content)
	if src != "" {
		data, err = os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
	}
	srcChecksum := checksum(data)

	exec := board.Executor()

	destExists, destChecksum, err := remoteChecksum(ctx, exec, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination: %w", err)
	}

	if destExists && destChecksum == srcChecksum {
		return module.Unchanged("file already exists with correct content"), nil
	}
	if destExists && !force {
		return module.Unchanged("destination exists and force=false"), nil
	}

	if err := upload(ctx, exec, dest, data); err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	msg := "file created"
	if destExists {
		msg = "file updated"
	}

	return module.ChangedWithData(msg, map[string]any{
		"dest":     dest,
		"checksum": srcChecksum,
	}), nil
}

// checksum calculates the SHA256 checksum of data, ignoring surrounding
// whitespace the way buffered reads do.
func checksum(data []byte) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(string(data))))
	return hex.EncodeToString(h[:])
}

// remoteChecksum reads the destination and returns its checksum.
func remoteChecksum(ctx context.Context, exec *executor.Executor, path string) (exists bool, sum string, err error) {
	out, err := exec.Buffered(ctx, commands.PathExists(path))
	if err != nil {
		return false, "", err
	}
	if out != "yes" {
		return false, "", nil
	}

	content, err := exec.Buffered(ctx, commands.ReadFile(path))
	if err != nil {
		return true, "", err
	}
	return true, checksum([]byte(content)), nil
}

// upload streams data into path, replacing its content.
func upload(ctx context.Context, exec *executor.Executor, path string, data []byte) error {
	proc, err := exec.Streaming(ctx, commands.WriteStdinToFile(path))
	if err != nil {
		return err
	}

	stdin := proc.Stdin()
	if _, err := stdin.Write(data); err != nil {
		_ = proc.Close()
		return err
	}
	if err := stdin.Close(); err != nil {
		_ = proc.Close()
		return err
	}

	_, err = exec.Receive(ctx, proc)
	return err
}

// Ensure Module implements the module.Module interface.
var _ module.Module = (*Module)(nil)
