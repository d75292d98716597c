package wifi

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/errs"
)

// Encryption describes the security of a network as reported by iwinfo.
type Encryption struct {
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Network is a network reported by a scan or by wifi info.
type Network struct {
	SSID       string      `json:"ssid"`
	BSSID      string      `json:"bssid,omitempty"`
	Channel    int         `json:"channel,omitempty"`
	Signal     *int        `json:"signal,omitempty"`
	Quality    int         `json:"quality"`
	QualityMax int         `json:"quality_max"`
	Encryption *Encryption `json:"encryption,omitempty"`
}

// UnmarshalJSON decodes a network, accepting max_quality as an older
// spelling of quality_max.
func (n *Network) UnmarshalJSON(data []byte) error {
	type plain Network
	var raw struct {
		plain
		MaxQuality int `json:"max_quality"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Network(raw.plain)
	if n.QualityMax == 0 {
		n.QualityMax = raw.MaxQuality
	}
	return nil
}

// SignalRatio is quality relative to its maximum, or 0 when no maximum is known.
func (n Network) SignalRatio() float64 {
	if n.QualityMax <= 0 {
		return 0
	}
	return float64(n.Quality) / float64(n.QualityMax)
}

// scanPayload is the document printed by the scan command.
type scanPayload struct {
	Results []Network `json:"results"`
}

// FindAvailableNetworks scans for networks and returns them strongest first.
// Networks with equal signal keep their scan order.
func (m *Manager) FindAvailableNetworks(ctx context.Context) ([]Network, error) {
	const op = errs.Op("wifi.scan")

	out, err := m.exec.Buffered(ctx, commands.ScanWifi())
	if err != nil {
		return nil, errs.E(op, err)
	}

	var payload scanPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return nil, errs.E(op, errs.KindParse, "unable to parse scan results", err)
	}

	return RankBySignal(payload.Results), nil
}

// RankBySignal sorts networks by descending signal ratio, keeping the input
// order for ties. The input slice is not modified.
func RankBySignal(networks []Network) []Network {
	ranked := make([]Network, len(networks))
	copy(ranked, networks)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SignalRatio() > ranked[j].SignalRatio()
	})
	return ranked
}

// Current reports the network the board is associated with. The boolean is
// false when the board is not associated.
func (m *Manager) Current(ctx context.Context) (Network, bool, error) {
	const op = errs.Op("wifi.info")

	out, err := m.exec.Buffered(ctx, commands.GetWifiInfo())
	if err != nil {
		return Network{}, false, errs.E(op, err)
	}

	var info Network
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return Network{}, false, errs.E(op, errs.KindParse, "unable to parse wifi info", err)
	}

	return info, info.SSID != "" && info.Signal != nil, nil
}
