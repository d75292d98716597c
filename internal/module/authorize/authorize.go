// Package authorize provides a module that authorizes this computer's SSH
// key on the board.
package authorize

import (
	"context"

	"github.com/eugenetaranov/t2/internal/module"
	"github.com/eugenetaranov/t2/internal/provision"
)

func init() {
	module.Register(&Module{})
}

// Module installs the local public key on the board.
type Module struct{}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "provision"
}

// Run executes the provision module.
//
// Parameters:
//   - key (string): Private key to authorize instead of the default pair
func (m *Module) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	if key := module.GetString(params, "key", ""); key != "" {
		if err := board.SetDefaultKey(key); err != nil {
			return nil, err
		}
	}

	outcome, err := board.ProvisionTessel(ctx)
	if err != nil {
		return nil, err
	}

	if outcome == provision.AlreadyPresent {
		return module.Unchanged("key already authorized"), nil
	}
	return module.Changed("key authorized"), nil
}

// Ensure Module implements the module.Module interface.
var _ module.Module = (*Module)(nil)
