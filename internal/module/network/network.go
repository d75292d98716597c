// Package network provides modules that configure the board's wifi.
package network

import (
	"context"
	"fmt"

	"github.com/eugenetaranov/t2/internal/module"
	"github.com/eugenetaranov/t2/internal/wifi"
)

func init() {
	module.Register(&Connect{})
	module.Register(&State{})
	module.Register(&Scan{})
}

// Connect joins a wifi network.
type Connect struct{}

// Name returns the module identifier.
func (m *Connect) Name() string {
	return "wifi"
}

// Run executes the wifi module.
//
// Parameters:
//   - ssid (string, required): Network name
//   - password (string): Network password; omit for open networks
//   - security (string): Encryption mode such as psk2 or wpa2
func (m *Connect) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	ssid, err := module.RequireString(params, "ssid")
	if err != nil {
		return nil, err
	}

	creds := wifi.Credentials{
		SSID:     ssid,
		Password: module.GetOptionalString(params, "password"),
		Security: module.GetString(params, "security", ""),
	}

	if err := board.ConnectToNetwork(ctx, creds); err != nil {
		return nil, err
	}

	return module.ChangedWithData(fmt.Sprintf("connected to %s", ssid), map[string]any{
		"ssid": ssid,
	}), nil
}

// State turns the radio on or off.
type State struct{}

// Name returns the module identifier.
func (m *State) Name() string {
	return "wifi_state"
}

// Run executes the wifi_state module.
//
// Parameters:
//   - enabled (bool, required): true or "on" to enable, false or "off" to disable
func (m *State) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	if _, ok := params["enabled"]; !ok {
		return nil, fmt.Errorf("required parameter 'enabled' is missing")
	}
	enabled, err := module.GetBool(params, "enabled", false)
	if err != nil {
		return nil, err
	}

	if err := board.SetWiFiState(ctx, enabled); err != nil {
		return nil, err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return module.Changed("wifi " + state), nil
}

// Scan lists visible networks. It never changes the board.
type Scan struct{}

// Name returns the module identifier.
func (m *Scan) Name() string {
	return "scan"
}

// Run executes the scan module.
//
// Parameters:
//   - require (string): Fail unless a network with this SSID is visible
func (m *Scan) Run(ctx context.Context, board module.Board, params map[string]any) (*module.Result, error) {
	networks, err := board.FindAvailableNetworks(ctx)
	if err != nil {
		return nil, err
	}

	ssids := make([]any, len(networks))
	for i, n := range networks {
		ssids[i] = n.SSID
	}

	if want := module.GetString(params, "require", ""); want != "" {
		found := false
		for _, n := range networks {
			if n.SSID == want {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("network %q is not visible", want)
		}
	}

	data := map[string]any{"networks": ssids}
	if len(networks) > 0 {
		data["best"] = networks[0].SSID
	}

	return module.UnchangedWithData(fmt.Sprintf("found %d networks", len(networks)), data), nil
}

// Ensure the modules implement the module.Module interface.
var (
	_ module.Module = (*Connect)(nil)
	_ module.Module = (*State)(nil)
	_ module.Module = (*Scan)(nil)
)
