package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/module"
	"github.com/eugenetaranov/t2/internal/tessel"
	"github.com/eugenetaranov/t2/internal/testing/fakedevice"
	"github.com/eugenetaranov/t2/internal/testing/fakelog"
	"github.com/eugenetaranov/t2/internal/wifi"
)

func newBoard(t *testing.T) (*fakedevice.Device, *tessel.Tessel) {
	t.Helper()

	dev := fakedevice.New(connector.KindUSB)
	dev.Handle(commands.GetWifiInfo().String(), func(p *fakedevice.Process) {
		p.WriteStdout(`{"ssid":"home","signal":-50}`)
		<-p.Released()
	})
	dev.Handle(commands.ScanWifi().String(), func(p *fakedevice.Process) {
		p.WriteStdout(`{"results":[{"ssid":"cafe","quality":10,"quality_max":70},{"ssid":"home","quality":60,"quality_max":70}]}`)
	})

	cfg := tessel.Config{Wifi: wifi.Config{ConnectTimeout: time.Second}}
	return dev, tessel.New(dev, cfg, fakelog.New())
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"wifi", "wifi_state", "scan"} {
		assert.NotNil(t, module.Get(name), name)
	}
}

func TestConnect(t *testing.T) {
	dev, board := newBoard(t)

	res, err := (&Connect{}).Run(context.Background(), board, map[string]any{"ssid": "home", "password": 12345678})
	require.NoError(t, err)
	assert.True(t, res.Changed)

	assert.Equal(t, 1, dev.CallCount("uci set wireless.@wifi-iface[0].key=12345678"))
	assert.Equal(t, 1, dev.CallCount("uci set wireless.@wifi-iface[0].encryption=psk2"))
}

func TestConnectRequiresSSID(t *testing.T) {
	dev, board := newBoard(t)

	_, err := (&Connect{}).Run(context.Background(), board, map[string]any{"password": "x"})
	require.Error(t, err)
	assert.Empty(t, dev.Calls())
}

func TestState(t *testing.T) {
	dev, board := newBoard(t)

	res, err := (&State{}).Run(context.Background(), board, map[string]any{"enabled": "off"})
	require.NoError(t, err)
	assert.Equal(t, "wifi disabled", res.Message)
	assert.Len(t, dev.Calls(), 3)

	_, err = (&State{}).Run(context.Background(), board, map[string]any{})
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	_, board := newBoard(t)

	res, err := (&Scan{}).Run(context.Background(), board, map[string]any{"require": "cafe"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []any{"home", "cafe"}, res.Data["networks"])
	assert.Equal(t, "home", res.Data["best"])

	_, err = (&Scan{}).Run(context.Background(), board, map[string]any{"require": "airport"})
	assert.Error(t, err)
}
