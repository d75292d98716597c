package wifi

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/executor"
	"github.com/eugenetaranov/t2/internal/testing/fakedevice"
	"github.com/eugenetaranov/t2/internal/testing/fakelog"
)

var (
	infoCmd   = commands.GetWifiInfo().String()
	commitCmd = commands.CommitWirelessCredentials().String()
	reloadCmd = commands.ReconnectWifi().String()
)

// associates makes wifi info report a signal and hold the stream open
// until released, like a board that joined the network.
func associates(p *fakedevice.Process) {
	p.WriteStdout(`{"ssid":"home","signal":-52,`)
	p.WriteStdout(`"quality":58,"quality_max":70}`)
	<-p.Released()
}

func setup(t *testing.T, cfg Config) (*fakedevice.Device, *fakelog.Logger, *Manager) {
	t.Helper()

	dev := fakedevice.New(connector.KindUSB)
	dev.Handle(infoCmd, associates)
	log := fakelog.New()

	return dev, log, New(executor.New(dev), cfg, log)
}

func strptr(s string) *string {
	return &s
}

func TestConnectToNetworkCommandSequence(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  []string
		mode  string
	}{
		{
			name:  "open network",
			creds: Credentials{SSID: "tank"},
			want: []string{
				"uci set wireless.@wifi-iface[0].ssid=tank",
				"uci set wireless.@wifi-iface[0].encryption=none",
				commitCmd,
				reloadCmd,
			},
			mode: "none",
		},
		{
			name:  "password defaults to psk2",
			creds: Credentials{SSID: "tank", Password: strptr("fish")},
			want: []string{
				"uci set wireless.@wifi-iface[0].ssid=tank",
				"uci set wireless.@wifi-iface[0].key=fish",
				"uci set wireless.@wifi-iface[0].encryption=psk2",
				commitCmd,
				reloadCmd,
			},
			mode: "psk2",
		},
		{
			name:  "explicit security wins",
			creds: Credentials{SSID: "tank", Password: strptr("fish"), Security: "wpa2"},
			want: []string{
				"uci set wireless.@wifi-iface[0].ssid=tank",
				"uci set wireless.@wifi-iface[0].key=fish",
				"uci set wireless.@wifi-iface[0].encryption=wpa2",
				commitCmd,
				reloadCmd,
			},
			mode: "wpa2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, log, m := setup(t, Config{})

			err := m.ConnectToNetwork(context.Background(), tt.creds)
			require.NoError(t, err)

			calls := dev.Calls()
			require.Greater(t, len(calls), len(tt.want))
			assert.Equal(t, tt.want, calls[:len(tt.want)])
			for _, c := range calls[len(tt.want):] {
				assert.Equal(t, infoCmd, c)
			}

			assert.Equal(t, 1, dev.MaxInFlight())
			assert.Equal(t, "Wifi Connected. SSID: tank, security mode: "+tt.mode, log.Last("info"))
		})
	}
}

func TestConnectToNetworkOpenNetworkSkipsPassword(t *testing.T) {
	dev, _, m := setup(t, Config{})

	require.NoError(t, m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"}))

	for _, c := range dev.Calls() {
		assert.False(t, strings.Contains(c, ".key="), "unexpected password step %q", c)
	}
	assert.Equal(t, 1, dev.CallCount("uci set wireless.@wifi-iface[0].ssid=tank"))
}

func TestConnectToNetworkRequiresSSID(t *testing.T) {
	dev, _, m := setup(t, Config{})

	err := m.ConnectToNetwork(context.Background(), Credentials{Password: strptr("fish")})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Contains(t, err.Error(), "must set SSID")
	assert.Empty(t, dev.Calls())
}

func TestConnectToNetworkStepFailureAborts(t *testing.T) {
	dev, _, m := setup(t, Config{})
	dev.Handle(commitCmd, func(p *fakedevice.Process) {
		p.WriteStderr("uci: I/O error")
		p.ExitWith(1)
	})

	err := m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProtocol))
	assert.Contains(t, err.Error(), "uci: I/O error")

	assert.Equal(t, 1, dev.CallCount(commitCmd))
	assert.Zero(t, dev.CallCount(reloadCmd))
	assert.Zero(t, dev.CallCount(infoCmd))
}

func TestConnectToNetworkRejectedByBoard(t *testing.T) {
	dev, log, m := setup(t, Config{})
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		p.WriteStdout("Unable to connect to the network.")
		<-p.Released()
	})

	err := m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProtocol))
	assert.Contains(t, err.Error(), "Unable to connect to the network.")
	assert.Empty(t, log.Messages("info"))

	assert.Eventually(t, func() bool { return dev.Live() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConnectToNetworkTimesOut(t *testing.T) {
	dev, log, m := setup(t, Config{ConnectTimeout: 30 * time.Millisecond})
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		<-p.Released()
	})

	start := time.Now()
	err := m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTimeout))
	assert.Contains(t, strings.ToLower(err.Error()), "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, log.Messages("info"))

	// The listener is torn down with the race.
	assert.Eventually(t, func() bool { return dev.Live() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConnectToNetworkRequeriesUntilVerdict(t *testing.T) {
	dev, _, m := setup(t, Config{PollInterval: time.Millisecond})

	var queries atomic.Int32
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		if queries.Add(1) < 3 {
			p.WriteStdout("{}")
			return
		}
		associates(p)
	})

	require.NoError(t, m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"}))
	assert.Equal(t, 3, dev.CallCount(infoCmd))
	assert.Equal(t, 1, dev.MaxInFlight())
}

func TestConnectToNetworkCancelled(t *testing.T) {
	dev, _, m := setup(t, Config{})
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		<-p.Released()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := m.ConnectToNetwork(ctx, Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectToNetworkRequeriesAfterTransientError(t *testing.T) {
	dev, log, m := setup(t, Config{PollInterval: time.Millisecond})

	var queries atomic.Int32
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		if queries.Add(1) == 1 {
			p.WriteStderr("Command failed: Not found")
			p.ExitWith(4)
			return
		}
		associates(p)
	})

	require.NoError(t, m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"}))
	assert.Equal(t, 2, dev.CallCount(infoCmd))
	assert.Equal(t, "Wifi Connected. SSID: tank, security mode: none", log.Last("info"))
}

func TestConnectToNetworkTransientErrorsTimeOut(t *testing.T) {
	dev, _, m := setup(t, Config{ConnectTimeout: 50 * time.Millisecond, PollInterval: time.Millisecond})
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		p.WriteStderr("Command failed: Not found")
		p.ExitWith(4)
	})

	err := m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTimeout))
	assert.Greater(t, dev.CallCount(infoCmd), 1)
}

func TestConnectToNetworkFailureOnStderr(t *testing.T) {
	dev, _, m := setup(t, Config{PollInterval: time.Millisecond})
	dev.Handle(infoCmd, func(p *fakedevice.Process) {
		p.WriteStderr("Unable to connect: authentication failed")
		p.ExitWith(1)
	})

	err := m.ConnectToNetwork(context.Background(), Credentials{SSID: "tank"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProtocol))
	assert.Equal(t, "Unable to connect to the network.", errs.Message(err))
	assert.Equal(t, 1, dev.CallCount(infoCmd))
}
