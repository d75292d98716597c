// Package main is the entrypoint for the t2 CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	// Import modules to register them
	_ "github.com/eugenetaranov/t2/internal/module/authorize"
	_ "github.com/eugenetaranov/t2/internal/module/command"
	_ "github.com/eugenetaranov/t2/internal/module/copy"
	_ "github.com/eugenetaranov/t2/internal/module/network"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug      bool
	dryRun     bool
	noColor    bool
	configPath string
	lanHost    string
	serial     string
	bridge     []string
	container  string
	keyPath    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "t2",
	Short: "t2 - Command line tool for Tessel boards",
	Long: `t2 configures Tessel boards attached over USB or reachable on the network.

It authorizes this computer's SSH key on a board, joins wireless networks,
toggles the radio and runs YAML plans of board steps.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with transport traces")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.tessel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&lanHost, "lan", "", "Reach the board over the network at this host")
	rootCmd.PersistentFlags().StringVar(&serial, "serial", "", "Select a USB board by serial number")
	rootCmd.PersistentFlags().StringSliceVar(&bridge, "bridge", nil, "USB bridge program and leading arguments")
	rootCmd.PersistentFlags().StringVar(&container, "container", "", "Use a running container as a USB board")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "", "Private key to authorize or authenticate with")

	// Add subcommands
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(modulesCmd)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
