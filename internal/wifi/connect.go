package wifi

import (
	"context"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/errs"
)

// ConnectToNetwork stages and commits creds, reloads the wireless stack and
// waits for the board to associate.
func (m *Manager) ConnectToNetwork(ctx context.Context, creds Credentials) error {
	const op = errs.Op("wifi.connect")

	if creds.SSID == "" {
		return errs.E(op, errs.KindValidation, "Invalid credentials: must set SSID with the -n or --ssid option.")
	}

	security := commands.EncryptionFor(creds.Password, creds.Security)

	steps := []commands.Command{commands.SetNetworkSSID(creds.SSID)}
	if creds.Password != nil {
		steps = append(steps, commands.SetNetworkPassword(*creds.Password))
	}
	steps = append(steps,
		commands.SetNetworkEncryption(security),
		commands.CommitWirelessCredentials(),
		commands.ReconnectWifi(),
	)

	if err := m.run(ctx, op, steps); err != nil {
		return err
	}

	if err := m.awaitAssociation(ctx); err != nil {
		return errs.E(op, err)
	}

	m.log.Info("Wifi Connected. SSID: %s, security mode: %s", creds.SSID, security)
	return nil
}

// run executes steps one after another, stopping at the first failure.
func (m *Manager) run(ctx context.Context, op errs.Op, steps []commands.Command) error {
	for _, cmd := range steps {
		if _, err := m.exec.Buffered(ctx, cmd); err != nil {
			return errs.E(op, err)
		}
	}
	return nil
}
