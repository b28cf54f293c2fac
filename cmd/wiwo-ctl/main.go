// Wiwo-ctl is a control utility for Orvibo-family WiFi sockets and
// IR/RF433 blasters.
//
// It provides UDP broadcast discovery, direct power and signal commands,
// a passive state change monitor, and an interactive control wizard.
// Devices are addressed by IP, MAC, or a nickname from the local device
// registry.
//
// Usage:
//
//	wiwo-ctl [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'wiwo-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wiwo-ctl",
	Short: "WiFi Socket and IR Blaster Control Utility",
	Long: `A standalone utility for controlling Orvibo-family smart home devices.

Provides UDP broadcast discovery, power switching for WiFi sockets,
signal capture and replay for IR/RF433 blasters, a passive state
change monitor, and an interactive control wizard.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Logging stays silent unless WIWO_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wiwo-ctl %s\n", version.Full())
	},
}
