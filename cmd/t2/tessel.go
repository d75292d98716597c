package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/t2/internal/config"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/provision"
	"github.com/eugenetaranov/t2/internal/wifi"
	"github.com/eugenetaranov/t2/pkg/facts"
)

// provisionCmd authorizes this computer on a USB board.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Authorize this computer to access the board over the network",
	Long: `Create an SSH key pair for this computer if needed and add its public key
to the board's authorized keys. The board must be attached over USB.

Examples:
  t2 provision
  t2 provision --key ~/.ssh/tessel`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(func(ctx context.Context, s *session) error {
			_, err := s.board.ProvisionTessel(ctx)
			return err
		})
	},
}

// keyCmd groups key management commands.
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the key used to authenticate with boards",
}

var keySetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Use the key pair at path for provisioning and LAN access",
	Long: `Record a private key as the default. Its public half must be stored
next to it with a .pub suffix.

Examples:
  t2 key set ~/.ssh/tessel`,
	Args: cobra.ExactArgs(1),
	RunE: setKey,
}

func init() {
	keyCmd.AddCommand(keySetCmd)
}

func setKey(cmd *cobra.Command, args []string) error {
	out := newOutput()
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		out.Error("%v", err)
		return err
	}

	keys := provision.New(nil, cfg.Provision(), out)
	if err := keys.SetDefaultKey(path); err != nil {
		out.Error("%s", errs.Message(err))
		return err
	}

	file := configPath
	if file == "" {
		file = config.DefaultPath()
	}
	if err := config.SaveKeyPath(file, path); err != nil {
		out.Error("%v", err)
		return err
	}

	out.Info("Default key set to %s.", path)
	return nil
}

// wifiCmd reports the current network and groups wifi commands.
var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Show and configure the board's wireless network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(func(ctx context.Context, s *session) error {
			network, ok, err := s.board.CurrentNetwork(ctx)
			if err != nil {
				return err
			}
			if !ok {
				s.out.Info("Not connected to any network.")
				return nil
			}
			s.out.Info("Connected to %s", network.SSID)
			s.out.Networks([]wifi.Network{network})
			return nil
		})
	},
}

var wifiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible networks, strongest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(func(ctx context.Context, s *session) error {
			s.out.Info("Scanning for available networks...")
			networks, err := s.board.FindAvailableNetworks(ctx)
			if err != nil {
				return err
			}
			s.out.Networks(networks)
			return nil
		})
	},
}

var wifiConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Join a wireless network",
	Long: `Store network credentials on the board and wait for it to associate.
Omit --password for open networks.

Examples:
  t2 wifi connect -n home -p secret
  t2 wifi connect -n lab -p secret -s wpa2
  t2 wifi connect -n cafe`,
	Args: cobra.NoArgs,
	RunE: connectWifi,
}

var wifiOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Turn the board's radio on",
	Args:  cobra.NoArgs,
	RunE:  setWifiState(true),
}

var wifiOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn the board's radio off",
	Args:  cobra.NoArgs,
	RunE:  setWifiState(false),
}

func init() {
	wifiConnectCmd.Flags().StringP("ssid", "n", "", "Network name")
	wifiConnectCmd.Flags().StringP("password", "p", "", "Network password")
	wifiConnectCmd.Flags().StringP("security", "s", "", "Security mode: none, wep, psk, psk2 or wpa2")

	wifiCmd.AddCommand(wifiListCmd)
	wifiCmd.AddCommand(wifiConnectCmd)
	wifiCmd.AddCommand(wifiOnCmd)
	wifiCmd.AddCommand(wifiOffCmd)
}

func connectWifi(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	ssid, _ := flags.GetString("ssid")
	security, _ := flags.GetString("security")

	creds := wifi.Credentials{SSID: ssid, Security: security}
	if flags.Changed("password") {
		password, _ := flags.GetString("password")
		creds.Password = &password
	}

	return withBoard(func(ctx context.Context, s *session) error {
		return s.board.ConnectToNetwork(ctx, creds)
	})
}

func setWifiState(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withBoard(func(ctx context.Context, s *session) error {
			return s.board.SetWiFiState(ctx, enabled)
		})
	}
}

// infoCmd prints facts about the board.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show facts about the board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(func(ctx context.Context, s *session) error {
			f, err := facts.Gather(ctx, s.board.Executor())
			if err != nil {
				return err
			}

			s.out.Board(s.target)
			keys := make([]string, 0, len(f))
			for k := range f {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				s.out.Info("%s: %s", k, fmt.Sprint(f[k]))
			}
			return nil
		})
	},
}
