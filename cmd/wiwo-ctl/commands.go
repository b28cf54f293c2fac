package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/config"
	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/session"
	"github.com/halloy/wiwo/internal/signal"
	"github.com/halloy/wiwo/internal/transport"
	"github.com/halloy/wiwo/internal/ui"
	"github.com/halloy/wiwo/internal/wizard/tui"
)

// Command flags
var (
	responseTimeout time.Duration
	bindAddr        string

	scanWait      time.Duration
	scanBroadcast string
	jsonOutput    bool

	learnOutput  string
	learnRF      bool
	learnWindow  time.Duration
	learnForce   bool
	learnVerbose bool

	emitInput   string
	emitRF      bool
	emitVerbose bool
	assumeYes   bool

	monitorFor time.Duration
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().DurationVar(&responseTimeout, "timeout", session.DefaultTimeout, "Reply wait per request")
	rootCmd.PersistentFlags().StringVar(&bindAddr, "bind", "", "Local address to bind (default: ephemeral port)")

	// Add subcommands directly to root
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(wizardCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for devices on the network",
	Long: `Scan for WiFi sockets and IR/RF433 blasters using UDP broadcast.

This command broadcasts an identification probe on the vendor port and
collects answers for the scan window. Found devices are remembered in
the local registry so later commands can address them by MAC or
nickname without another scan.`,
	Example: `  # Scan with the default 3 second window
  wiwo-ctl scan

  # Longer window for sleepy networks
  wiwo-ctl scan --wait 10s

  # Directed broadcast for a specific subnet
  wiwo-ctl scan --broadcast 192.168.1.255

  # Machine-readable output
  wiwo-ctl scan --json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanWait, "wait", discovery.DefaultWait, "How long to collect answers")
	scanCmd.Flags().StringVar(&scanBroadcast, "broadcast", "", "Broadcast address (default: 255.255.255.255)")
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	registry := loadRegistryQuiet()

	scanner := newScanner()
	scanner.Wait = scanWait
	if !cmd.Flags().Changed("wait") && registry != nil && registry.Preferences != nil && registry.Preferences.ScanWait > 0 {
		scanner.Wait = time.Duration(registry.Preferences.ScanWait) * time.Second
	}
	if scanBroadcast != "" {
		addr, err := netip.ParseAddr(scanBroadcast)
		if err != nil {
			return fmt.Errorf("invalid broadcast address %q: %w", scanBroadcast, err)
		}
		scanner.Broadcast = addr
	} else if registry != nil && registry.Preferences != nil && registry.Preferences.Broadcast != "" {
		if addr, err := netip.ParseAddr(registry.Preferences.Broadcast); err == nil {
			scanner.Broadcast = addr
		}
	}

	if !jsonOutput {
		ui.PrintPleaseWait("Scanning for devices", fmt.Sprintf("about %s", scanner.Wait))
	}

	found, err := scanner.DiscoverAll()
	if err != nil && len(found) == 0 {
		return fmt.Errorf("scan failed: %w", err)
	}
	if err != nil {
		if jsonOutput {
			fmt.Fprintf(os.Stderr, "warning: scan ended early: %v\n", err)
		} else {
			ui.PrintWarning("Scan ended early", map[string]string{
				"Error":   err.Error(),
				"Partial": fmt.Sprintf("%d device(s) answered before the error", len(found)),
			})
		}
	}

	records := make([]*discovery.DeviceRecord, 0, len(found))
	for _, rec := range found {
		r := rec
		records = append(records, &r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].IP.Less(records[j].IP)
	})

	if registry != nil && len(records) > 0 {
		for _, rec := range records {
			registry.RememberDevice(rec)
		}
		saveRegistryQuiet(registry)
	}

	if jsonOutput {
		return printScanJSON(records, registry)
	}
	printScanTable(records, registry)
	return nil
}

// scanEntry is the JSON shape of one scan result
type scanEntry struct {
	Kind     string `json:"kind"`
	IP       string `json:"ip"`
	MAC      string `json:"mac"`
	Model    string `json:"model"`
	On       *bool  `json:"on,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

func printScanJSON(records []*discovery.DeviceRecord, registry *config.Registry) error {
	entries := make([]scanEntry, 0, len(records))
	for _, rec := range records {
		entry := scanEntry{
			Kind:     rec.Kind.String(),
			IP:       rec.IP.String(),
			MAC:      rec.MAC.String(),
			Model:    rec.Model,
			Nickname: nicknameFor(registry, rec),
		}
		if rec.Kind == discovery.KindSocket {
			on := rec.On
			entry.On = &on
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printScanTable(records []*discovery.DeviceRecord, registry *config.Registry) {
	if len(records) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure devices are plugged in with a lit WiFi LED")
		fmt.Println("  - Devices only answer probes from the same subnet")
		fmt.Println("  - A device claimed by another controller stays silent for ~3 minutes")
		fmt.Println("  - Try increasing --wait for slower networks")
		return
	}

	fmt.Printf("Found %d device(s):\n\n", len(records))

	for i, rec := range records {
		fmt.Printf("%d. %s\n", i+1, deviceLabel(registry, rec))
		fmt.Printf("   Kind:   %s\n", rec.Kind)
		fmt.Printf("   IP:     %s\n", rec.IP)
		fmt.Printf("   Model:  %s\n", rec.Model)
		if rec.Kind == discovery.KindSocket {
			fmt.Printf("   State:  %s\n", ui.RenderPowerState(rec.On))
		}
		fmt.Println()
	}

	fmt.Println("Use 'wiwo-ctl status <device>' to inspect a device")
	fmt.Println("Use 'wiwo-ctl wizard' for interactive control")
}

// statusCmd shows one device's identity and state
var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Show device identity and power state",
	Long: `Probe one device and display its identity and current state.

The device argument accepts an IP address, a MAC address, or a nickname
from the registry. The state comes from the device's identification
reply, so this never claims the device or disturbs another controller's
session.`,
	Example: `  # By IP
  wiwo-ctl status 192.168.1.45

  # By MAC
  wiwo-ctl status ac:df:23:8d:1d:2e

  # By nickname
  wiwo-ctl status "desk lamp"`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	record, err := resolveDevice(args[0])
	if err != nil {
		return err
	}

	registry := loadRegistryQuiet()

	fmt.Printf("Kind:     %s\n", record.Kind)
	fmt.Printf("MAC:      %s\n", record.MAC)
	fmt.Printf("IP:       %s\n", record.IP)
	fmt.Printf("Model:    %s\n", record.Model)
	if nick := nicknameFor(registry, record); nick != "" {
		fmt.Printf("Nickname: %s\n", nick)
	}
	if record.Kind == discovery.KindSocket {
		fmt.Printf("Power:    %s\n", ui.RenderPowerState(record.On))
	}
	if registry != nil {
		if dev := registry.GetDevice(record.MAC.String()); dev != nil {
			if n := len(dev.Signals); n > 0 {
				fmt.Printf("Signals:  %d saved\n", n)
			}
		}
	}

	return nil
}

var nameCmd = &cobra.Command{
	Use:   "name <device> <nickname>",
	Short: "Give a device a nickname",
	Long: `Store a nickname for a device so later commands can refer to it by
name instead of by IP or MAC.

The device argument accepts an IP address, a MAC address, or the device's
current nickname. A device already in the registry renames without touching
the network; anything else is resolved with a probe first. Nicknames are
matched case-insensitively and must be unique; pass an empty string to
remove one.`,
	Example: `  wiwo-ctl name 192.168.1.45 "desk lamp"

  # Rename by current nickname
  wiwo-ctl name "desk lamp" "reading lamp"

  # Remove the nickname again
  wiwo-ctl name "reading lamp" ""`,
	Args: cobra.ExactArgs(2),
	RunE: runName,
}

func runName(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	nickname := strings.TrimSpace(args[1])

	// A MAC or nickname already in the registry renames offline; an IP or
	// an unknown identifier resolves on the network to learn its MAC.
	var mac string
	if parsed, err := protocol.ParseMAC(args[0]); err == nil && registry.GetDevice(parsed.String()) != nil {
		mac = parsed.String()
	} else if knownMAC, known := registry.FindByNickname(args[0]); known != nil {
		mac = knownMAC
	} else {
		record, err := resolveDevice(args[0])
		if err != nil {
			return err
		}
		mac = record.MAC.String()
	}

	if nickname != "" {
		// Device arguments resolve IP and MAC forms before nicknames, so a
		// nickname shaped like either would be unreachable.
		if _, err := netip.ParseAddr(nickname); err == nil {
			return fmt.Errorf("nickname %q would be read as an IP address; pick another", nickname)
		}
		if _, err := protocol.ParseMAC(nickname); err == nil {
			return fmt.Errorf("nickname %q would be read as a MAC address; pick another", nickname)
		}
		if otherMAC, other := registry.FindByNickname(nickname); other != nil && otherMAC != mac {
			return fmt.Errorf("nickname %q already names %s", nickname, otherMAC)
		}
	}

	registry.SetDeviceNickname(mac, nickname)
	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save device registry: %w", err)
	}

	shown := nickname
	if shown == "" {
		shown = "(removed)"
	}
	ui.PrintSuccess("Device renamed", map[string]string{
		"Device":   mac,
		"Nickname": shown,
	})
	return nil
}

// onCmd switches a socket on
var onCmd = &cobra.Command{
	Use:   "on <device>",
	Short: "Switch a socket on",
	Example: `  wiwo-ctl on 192.168.1.45
  wiwo-ctl on "desk lamp"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPower("on", args[0])
	},
}

// offCmd switches a socket off
var offCmd = &cobra.Command{
	Use:   "off <device>",
	Short: "Switch a socket off",
	Example: `  wiwo-ctl off 192.168.1.45
  wiwo-ctl off "desk lamp"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPower("off", args[0])
	},
}

// switchCmd toggles a socket
var switchCmd = &cobra.Command{
	Use:   "switch <device>",
	Short: "Switch a socket to the opposite state",
	Long: `Read the socket's current state and switch it to the opposite one.

The printed state is the device's own confirmation, re-read after the
switch, not an assumption about what the command did.`,
	Example: `  wiwo-ctl switch 192.168.1.45
  wiwo-ctl switch "desk lamp"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPower("switch", args[0])
	},
}

func runPower(verb, deviceArg string) error {
	record, err := resolveDevice(deviceArg)
	if err != nil {
		return err
	}
	if record.Kind != discovery.KindSocket {
		return fmt.Errorf("%s is a %s; only sockets have a power relay", deviceArg, record.Kind)
	}

	sess := newSession(record)
	defer sess.Close()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Power Control",
		Command: "wiwo-ctl " + verb,
		Params: map[string]string{
			"Device": deviceLabel(loadRegistryQuiet(), record),
			"IP":     record.IP.String(),
		},
		TotalSteps: 2,
		StepNames:  []string{"Claim device session", "Switch and confirm"},
	})

	_, err = runner.RunWithResult(context.Background(), func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		if err := sess.Subscribe(); err != nil {
			onStep(1, "", ui.StepFailed, session.GetShortErrorMessage(err))
			runner.SetTroubleshooting(hintLines(err))
			return nil, err
		}
		onStep(1, "", ui.StepComplete, "device claimed")

		onStep(2, "", ui.StepRunning, "")
		var confirmed bool
		var opErr error
		switch verb {
		case "on":
			confirmed, opErr = sess.SetState(true)
		case "off":
			confirmed, opErr = sess.SetState(false)
		default:
			confirmed, opErr = sess.Toggle()
		}
		if opErr != nil {
			onStep(2, "", ui.StepFailed, session.GetShortErrorMessage(opErr))
			runner.SetTroubleshooting(hintLines(opErr))
			return nil, opErr
		}
		onStep(2, "", ui.StepComplete, "confirmed "+stateWord(confirmed))

		return map[string]string{
			"Device": record.MAC.String(),
			"Power":  stateWord(confirmed),
		}, nil
	})
	return err
}

// learnCmd captures a signal from a remote control
var learnCmd = &cobra.Command{
	Use:   "learn <device> [name]",
	Short: "Capture an IR or RF433 signal from a remote",
	Long: `Put a blaster into learn mode and wait for a button press.

Point the original remote at the blaster and press the button you want
to capture. A named capture is saved into the registry's signal
directory and can be replayed with 'wiwo-ctl emit <device> <name>';
--output writes the raw bytes to a file instead (or additionally).

The capture window closes after --window; a window with no button press
is reported as a failure.`,
	Example: `  # Capture an IR code and save it as "tv_power"
  wiwo-ctl learn ac:cf:43:78:ef:dc tv_power

  # Capture an RF433 code
  wiwo-ctl learn "living room blaster" fan_speed --rf

  # Write the raw bytes to a file instead of the registry
  wiwo-ctl learn 192.168.1.52 --output tv_power.sig`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLearn,
}

func init() {
	learnCmd.Flags().StringVarP(&learnOutput, "output", "o", "", "Write the raw capture to this file")
	learnCmd.Flags().BoolVar(&learnRF, "rf", false, "Record the capture as RF433 instead of IR")
	learnCmd.Flags().DurationVar(&learnWindow, "window", session.DefaultLearnWindow, "How long to wait for a button press")
	learnCmd.Flags().BoolVar(&learnForce, "force", false, "Replace an existing signal with the same name")
	learnCmd.Flags().BoolVar(&learnVerbose, "verbose", false, "Show a hex dump of the captured signal")
}

func runLearn(cmd *cobra.Command, args []string) error {
	record, err := resolveDevice(args[0])
	if err != nil {
		return err
	}
	if record.Kind != discovery.KindBlaster {
		return fmt.Errorf("%s is a %s; only blasters capture signals", args[0], record.Kind)
	}

	var name string
	if len(args) > 1 {
		name = args[1]
	}
	if name == "" && learnOutput == "" {
		return fmt.Errorf("nowhere to put the capture: give a signal name or --output")
	}

	kind := signal.KindIR
	if learnRF {
		kind = signal.KindRF433
	}

	registry := loadRegistryQuiet()
	var registryPath string
	if name != "" {
		if registry == nil {
			return fmt.Errorf("device registry unavailable; use --output to save to a file")
		}
		if !learnForce && registry.GetSignal(record.MAC.String(), name) != nil {
			return fmt.Errorf("a signal named %q is already saved for this device (use --force to replace it)", name)
		}
		registryPath, err = registry.SignalPath(record.MAC.String(), name)
		if err != nil {
			return err
		}
	}

	sess := newSession(record)
	defer sess.Close()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Signal Capture",
		Command: "wiwo-ctl learn",
		Params: map[string]string{
			"Device": deviceLabel(registry, record),
			"Kind":   kind.String(),
			"Window": learnWindow.String(),
		},
		TotalSteps: 3,
		StepNames:  []string{"Claim device session", "Wait for button press", "Save capture"},
		Verbose:    learnVerbose,
	})

	_, err = runner.RunWithResult(context.Background(), func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		if err := sess.Subscribe(); err != nil {
			onStep(1, "", ui.StepFailed, session.GetShortErrorMessage(err))
			runner.SetTroubleshooting(hintLines(err))
			return nil, err
		}
		onStep(1, "", ui.StepComplete, "device claimed")

		onStep(2, "", ui.StepRunning, "point the remote at the blaster and press the button")
		data, err := sess.LearnSignal(learnWindow)
		if err != nil {
			onStep(2, "", ui.StepFailed, session.GetShortErrorMessage(err))
			runner.SetTroubleshooting(hintLines(err))
			return nil, err
		}
		if data == nil {
			onStep(2, "", ui.StepFailed, "window closed")
			runner.SetTroubleshooting([]string{
				"Hold the remote within a meter of the blaster",
				"Press and hold the button for about a second",
				"RF433 capture needs the RF-capable AllOne hardware",
			})
			return nil, fmt.Errorf("no button press within %s", learnWindow)
		}
		onStep(2, "", ui.StepComplete, fmt.Sprintf("%d bytes captured", len(data)))

		onStep(3, "", ui.StepRunning, "")
		capture := &signal.Capture{Kind: kind, Data: data}
		saved := make([]string, 0, 2)
		if registryPath != "" {
			if err := signal.Save(registryPath, capture); err != nil {
				onStep(3, "", ui.StepFailed, err.Error())
				return nil, err
			}
			registry.SetSignal(record.MAC.String(), name, registryPath, kind.String())
			saveRegistryQuiet(registry)
			saved = append(saved, registryPath)
		}
		if learnOutput != "" {
			if err := signal.Save(learnOutput, capture); err != nil {
				onStep(3, "", ui.StepFailed, err.Error())
				return nil, err
			}
			saved = append(saved, learnOutput)
		}
		onStep(3, "", ui.StepComplete, strings.Join(saved, ", "))
		runner.SetSignalDump(ui.NewSignalDump(data).SetMaxLines(16))

		details := map[string]string{
			"Bytes":       fmt.Sprintf("%d", len(data)),
			"Kind":        kind.String(),
			"Fingerprint": capture.Fingerprint(),
			"Saved to":    strings.Join(saved, ", "),
		}
		if name != "" {
			details["Name"] = name
		}
		return details, nil
	})
	return err
}

// emitCmd replays a captured signal
var emitCmd = &cobra.Command{
	Use:   "emit <device> [name]",
	Short: "Replay a captured signal through a blaster",
	Long: `Replay a previously captured signal.

A name refers to a signal saved in the registry by 'wiwo-ctl learn' or
the wizard; --input replays raw bytes from a file instead. The device
transmits without any acknowledgement, so success here means the frame
was sent, not that the target equipment reacted.

RF433 replays switch real equipment, possibly in other rooms, and ask
for confirmation first; --yes skips the prompt for scripting.`,
	Example: `  # Replay a saved signal
  wiwo-ctl emit ac:cf:43:78:ef:dc tv_power

  # Replay raw bytes from a file
  wiwo-ctl emit "living room blaster" --input tv_power.sig

  # Unattended RF433 replay
  wiwo-ctl emit ac:cf:43:78:ef:dc fan_speed --yes`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEmit,
}

func init() {
	emitCmd.Flags().StringVarP(&emitInput, "input", "i", "", "Read the signal from this file")
	emitCmd.Flags().BoolVar(&emitRF, "rf", false, "Treat a --input file as RF433")
	emitCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the RF433 confirmation prompt")
	emitCmd.Flags().BoolVar(&emitVerbose, "verbose", false, "Show a hex dump of the replayed signal")
}

func runEmit(cmd *cobra.Command, args []string) error {
	record, err := resolveDevice(args[0])
	if err != nil {
		return err
	}
	if record.Kind != discovery.KindBlaster {
		return fmt.Errorf("%s is a %s; only blasters replay signals", args[0], record.Kind)
	}

	registry := loadRegistryQuiet()

	var capture *signal.Capture
	var label string
	switch {
	case len(args) > 1:
		name := args[1]
		if registry == nil {
			return fmt.Errorf("device registry unavailable; use --input to replay from a file")
		}
		meta := registry.GetSignal(record.MAC.String(), name)
		if meta == nil {
			return fmt.Errorf("no signal named %q saved for this device%s", name, savedSignalHint(registry, record))
		}
		kind, err := signal.ParseKind(meta.Kind)
		if err != nil {
			return fmt.Errorf("registry entry for %q is damaged: %w", name, err)
		}
		capture, err = signal.Load(meta.Path, kind)
		if err != nil {
			return err
		}
		label = name

	case emitInput != "":
		kind := signal.KindIR
		if emitRF {
			kind = signal.KindRF433
		}
		capture, err = signal.Load(emitInput, kind)
		if err != nil {
			return err
		}
		label = filepath.Base(emitInput)

	default:
		return fmt.Errorf("nothing to replay: give a signal name or --input")
	}

	if capture.Kind == signal.KindRF433 && !assumeYes {
		if !ui.ReplayConfirmation(label) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	sess := newSession(record)
	defer sess.Close()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Signal Replay",
		Command: "wiwo-ctl emit",
		Params: map[string]string{
			"Device": deviceLabel(registry, record),
			"Signal": label,
			"Kind":   capture.Kind.String(),
		},
		TotalSteps: 2,
		StepNames:  []string{"Claim device session", "Transmit signal"},
		Verbose:    emitVerbose,
	})
	runner.SetSignalDump(ui.NewSignalDump(capture.Data).SetTitle("Replay Signal").SetMaxLines(16))

	_, err = runner.RunWithResult(context.Background(), func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		if err := sess.Subscribe(); err != nil {
			onStep(1, "", ui.StepFailed, session.GetShortErrorMessage(err))
			runner.SetTroubleshooting(hintLines(err))
			return nil, err
		}
		onStep(1, "", ui.StepComplete, "device claimed")

		onStep(2, "", ui.StepRunning, "")
		if err := sess.EmitSignal(capture.Data); err != nil {
			onStep(2, "", ui.StepFailed, session.GetShortErrorMessage(err))
			runner.SetTroubleshooting(hintLines(err))
			return nil, err
		}
		onStep(2, "", ui.StepComplete, fmt.Sprintf("%d bytes sent", len(capture.Data)))

		return map[string]string{
			"Signal": label,
			"Bytes":  fmt.Sprintf("%d", len(capture.Data)),
			"Note":   "no acknowledgement follows; check the target equipment",
		}, nil
	})
	return err
}

// savedSignalHint lists a device's saved signal names for error messages
func savedSignalHint(registry *config.Registry, record *discovery.DeviceRecord) string {
	dev := registry.GetDevice(record.MAC.String())
	if dev == nil || len(dev.Signals) == 0 {
		return " (nothing captured yet; see 'wiwo-ctl learn')"
	}
	names := make([]string, 0, len(dev.Signals))
	for n := range dev.Signals {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf(" (saved: %s)", strings.Join(names, ", "))
}

// monitorCmd passively listens for state change announcements
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch for state change announcements",
	Long: `Listen passively for the state change announcements devices push on
every power transition, whether it came from a command, the hardware
button, or the vendor app.

Announcements arrive on the vendor port, so by default this claims that
port exclusively; use --bind to share a host with something else
listening there. Runs until interrupted unless --for is given.`,
	Example: `  # Watch until ctrl+c
  wiwo-ctl monitor

  # Watch for one minute
  wiwo-ctl monitor --for 1m`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorFor, "for", 0, "Stop after this long (0 = forever)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	mon, err := discovery.NewMonitor(bindAddr)
	if err != nil {
		return fmt.Errorf("failed to open monitor socket: %w", err)
	}
	defer mon.Close()

	registry := loadRegistryQuiet()

	params := map[string]string{"Listening": mon.LocalAddr().String()}
	if monitorFor > 0 {
		params["Duration"] = monitorFor.String()
	}
	ui.PrintCommandHeader("Event Monitor", "wiwo-ctl monitor", params)
	fmt.Println("Watching for state changes (ctrl+c to stop)")
	fmt.Println()

	var deadline time.Time
	if monitorFor > 0 {
		deadline = time.Now().Add(monitorFor)
	}

	for {
		wait := 30 * time.Second
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil
			}
			if remaining < wait {
				wait = remaining
			}
		}

		ev, err := mon.Next(wait)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return err
		}

		line := ev.String()
		if registry != nil {
			if dev := registry.GetDevice(ev.MAC.String()); dev != nil && dev.Nickname != "" {
				line = fmt.Sprintf("%s [%s]", line, dev.Nickname)
			}
		}
		fmt.Printf("%s  %s\n", ev.At.Format("15:04:05"), line)
	}
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard [device]",
	Short: "Launch the interactive control wizard",
	Long: `Launch an interactive TUI for discovering and controlling devices.

The wizard provides a user-friendly interface for:
- Discovering devices on the network
- Switching sockets and watching their state
- Capturing and replaying blaster signals
- Naming devices for later commands

This is the recommended way to control devices for most users.`,
	Example: `  # Launch wizard with auto-discovery
  wiwo-ctl wizard
  # Or simply (wizard is default):
  wiwo-ctl

  # Jump straight to one device's dashboard
  wiwo-ctl wizard "desk lamp"
  wiwo-ctl wizard 192.168.1.45`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	var model tui.AppModel
	if len(args) > 0 {
		record, err := resolveDevice(args[0])
		if err != nil {
			return err
		}
		model = tui.NewAppModel(tui.ScreenDashboard, record, registry)
	} else {
		model = tui.NewAppModel(tui.ScreenDiscovery, nil, registry)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}

	// Release any device claim still held when the user quit
	if m, ok := final.(tui.AppModel); ok {
		m.Cleanup()
	}

	return nil
}

// resolveDevice turns an IP, MAC, or registry nickname into a live
// device record. MAC and nickname lookups probe the last known address
// first and fall back to a broadcast scan; a fresh answer updates the
// registry.
func resolveDevice(arg string) (*discovery.DeviceRecord, error) {
	scanner := newScanner()

	// A literal IP is a directed probe
	if addr, err := netip.ParseAddr(arg); err == nil {
		record, err := scanner.DiscoverOne(addr)
		if err != nil {
			return nil, err
		}
		rememberResolved(record)
		return record, nil
	}

	registry := loadRegistryQuiet()

	var mac protocol.MAC
	var lastIP string
	if parsed, err := protocol.ParseMAC(arg); err == nil {
		mac = parsed
		if registry != nil {
			if dev := registry.GetDevice(mac.String()); dev != nil {
				lastIP = dev.LastIP
			}
		}
	} else if registry != nil {
		macStr, dev := registry.FindByNickname(arg)
		if dev == nil {
			return nil, fmt.Errorf("%q is not an IP, a MAC, or a known nickname (run 'wiwo-ctl scan' first)", arg)
		}
		mac, err = protocol.ParseMAC(macStr)
		if err != nil {
			return nil, fmt.Errorf("registry entry for %q has an invalid MAC %q: %w", arg, macStr, err)
		}
		lastIP = dev.LastIP
	} else {
		return nil, fmt.Errorf("%q is not an IP or MAC address", arg)
	}

	// Last known address first; DHCP may have moved the device since
	if lastIP != "" {
		if addr, err := netip.ParseAddr(lastIP); err == nil {
			if record, err := scanner.DiscoverOne(addr); err == nil && record.MAC == mac {
				rememberResolved(record)
				return record, nil
			}
		}
	}

	fmt.Printf("Looking for %s on the network...\n", mac)
	found, err := scanner.DiscoverAll()
	if err != nil && len(found) == 0 {
		return nil, err
	}
	for _, rec := range found {
		if rec.MAC == mac {
			r := rec
			rememberResolved(&r)
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s did not answer discovery", discovery.ErrDeviceNotFound, mac)
}

// newScanner builds a scanner honoring the persistent flags
func newScanner() *discovery.Scanner {
	scanner := discovery.NewScanner()
	if responseTimeout > 0 {
		scanner.Timeout = responseTimeout
	}
	return scanner
}

// newSession builds a session honoring the persistent flags
func newSession(record *discovery.DeviceRecord) *session.Session {
	sess := session.New(record)
	if responseTimeout > 0 {
		sess.Timeout = responseTimeout
	}
	if bindAddr != "" {
		sess.LocalAddr = bindAddr
	}
	return sess
}

// loadRegistryQuiet loads the registry, degrading to nil on failure so
// commands still work without persistence
func loadRegistryQuiet() *config.Registry {
	registry, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Device registry unavailable", zap.Error(err))
		return nil
	}
	return registry
}

func saveRegistryQuiet(registry *config.Registry) {
	if err := registry.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// rememberResolved refreshes the registry entry for a freshly answered
// device
func rememberResolved(record *discovery.DeviceRecord) {
	registry := loadRegistryQuiet()
	if registry == nil {
		return
	}
	registry.RememberDevice(record)
	saveRegistryQuiet(registry)
}

// deviceLabel names a device for display: nickname when known, MAC
// otherwise
func deviceLabel(registry *config.Registry, record *discovery.DeviceRecord) string {
	if registry != nil {
		if dev := registry.GetDevice(record.MAC.String()); dev != nil && dev.Nickname != "" {
			return fmt.Sprintf("%s (%s)", dev.Nickname, record.MAC)
		}
	}
	return record.MAC.String()
}

// nicknameFor returns the registry nickname for a device, if any
func nicknameFor(registry *config.Registry, record *discovery.DeviceRecord) string {
	if registry == nil {
		return ""
	}
	if dev := registry.GetDevice(record.MAC.String()); dev != nil {
		return dev.Nickname
	}
	return ""
}

// stateWord renders a power state as "on"/"off"
func stateWord(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// hintLines converts a session error's troubleshooting text into bare
// tips for the result box, which draws its own heading and bullets
func hintLines(err error) []string {
	var tips []string
	for _, line := range strings.Split(session.GetTroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "• ")
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}
