// Wiwo-emu is a software emulation of Orvibo-family smart home devices.
//
// It answers the vendor UDP protocol like real hardware: broadcast
// discovery, session claims, power switching with state announcements,
// and blaster learn/replay. It exists for developing and testing
// controllers without plugging in devices, and reproduces the vendor
// quirks (single claim holder, rapid-handshake drops, wedging) that
// make testing against real sockets slow.
//
// Usage:
//
//	wiwo-emu serve [flags]
//
// See 'wiwo-emu serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halloy/wiwo/internal/emulator"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wiwo-emu",
	Short: "WiWo Device Emulator",
	Long: `A software emulation of Orvibo-family WiFi sockets and IR/RF433 blasters.

The emulator speaks the vendor UDP protocol on a real socket, so any
controller (including 'wiwo-ctl') can discover and drive it exactly
like hardware. Vendor quirks are reproduced: one claim holder per
device, unreliable rapid handshakes, and wedging when a second
controller claims a device.

Note: For controlling real devices, use the separate 'wiwo-ctl' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	host     string
	port     int
	logLevel string
	sockets  []string
	blasters []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the device emulator",
	Long: `Start the emulator with a fleet of emulated devices.

Each --socket flag adds an S20-style WiFi socket; an optional =on or
=off suffix sets the initial relay state (default off). Each --blaster
flag adds an AllOne-style IR/RF433 blaster. At least one device is
required, since an emulator with nothing to answer for would only
swallow the port.

The emulator binds UDP port 10000 by default, the port real devices
listen on, so it cannot share a host with real hardware traffic unless
you move it with --port.`,
	Example: `  # One socket, initially off
  wiwo-emu serve --socket ac:df:23:8d:1d:2e

  # A socket that starts on, plus a blaster, with debug logging
  wiwo-emu serve --socket ac:df:23:8d:1d:2e=on --blaster ac:cf:43:78:ef:dc --log-level debug

  # On a different port (point wiwo-ctl at it with --timeout and a directed scan)
  wiwo-emu serve --port 10700 --socket ac:df:23:8d:1d:2e`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Address to bind (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", int(protocol.VendorPort), "UDP port to listen on")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringArrayVar(&sockets, "socket", nil, "Add a socket: MAC[=on|=off] (repeatable)")
	serveCmd.Flags().StringArrayVar(&blasters, "blaster", nil, "Add a blaster: MAC (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(sockets) == 0 && len(blasters) == 0 {
		return fmt.Errorf("no devices to emulate: add at least one --socket or --blaster")
	}

	config := &emulator.Config{
		Host:     host,
		Port:     port,
		LogLevel: logLevel,
	}

	srv, err := emulator.New(config)
	if err != nil {
		return fmt.Errorf("failed to create emulator: %w", err)
	}

	for _, spec := range sockets {
		mac, on, err := parseSocketSpec(spec)
		if err != nil {
			return err
		}
		srv.AddSocket(mac, on)
	}
	for _, spec := range blasters {
		mac, err := protocol.ParseMAC(spec)
		if err != nil {
			return fmt.Errorf("invalid --blaster MAC %q: %w", spec, err)
		}
		srv.AddBlaster(mac)
	}

	return srv.Start()
}

// parseSocketSpec splits a --socket value into its MAC and initial
// state. "ac:df:23:8d:1d:2e=on" starts on; a bare MAC starts off.
func parseSocketSpec(spec string) (protocol.MAC, bool, error) {
	macPart, statePart, found := strings.Cut(spec, "=")

	mac, err := protocol.ParseMAC(macPart)
	if err != nil {
		return protocol.MAC{}, false, fmt.Errorf("invalid --socket MAC %q: %w", macPart, err)
	}

	on := false
	if found {
		switch strings.ToLower(statePart) {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return protocol.MAC{}, false, fmt.Errorf("invalid --socket state %q (use =on or =off)", statePart)
		}
	}
	return mac, on, nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wiwo-emu %s\n", version.Full())
	},
}
