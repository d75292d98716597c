package wifi

import (
	"context"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/errs"
)

// SetWiFiState turns the radio on or off. Both directions issue the same
// three commands; only enabling waits for the board to associate.
func (m *Manager) SetWiFiState(ctx context.Context, enabled bool) error {
	const op = errs.Op("wifi.state")

	toggle := commands.TurnOffWifi()
	if enabled {
		toggle = commands.TurnOnWifi(true)
	}

	steps := []commands.Command{
		toggle,
		commands.CommitWirelessCredentials(),
		commands.ReconnectWifi(),
	}
	if err := m.run(ctx, op, steps); err != nil {
		return err
	}

	if !enabled {
		m.log.Info("Wifi Disabled.")
		return nil
	}

	m.log.Info("Verifying wifi association...")
	if err := m.awaitAssociation(ctx); err != nil {
		return errs.E(op, err)
	}

	m.log.Info("Wifi Enabled.")
	return nil
}
