// Package tui implements the terminal user interface for the wiwo control wizard.
//
// This package provides an interactive, full-screen TUI for discovering and
// controlling WiFi sockets and IR/RF433 blasters. Built using the Bubble Tea
// framework, it follows the Elm architecture with immutable state updates and
// a clean Model-Update-View pattern.
//
// # Architecture
//
// The TUI is organized into two screens:
//   - Discovery: Scan the network for devices or probe an IP manually
//   - Dashboard: Control one device (power for sockets, signals for blasters)
//
// All screens use a unified container pattern (RenderApplicationContainer) for
// consistent layout with header, content area, and context-sensitive footer.
// Operation results appear as modal overlays on the dashboard rather than as
// separate screens.
//
// # Framework Components
//
// The TUI leverages Bubble Tea framework components throughout:
//   - bubbles/spinner: Busy indicators while talking to a device
//   - bubbles/textinput: Manual IP entry, nicknames, signal names
//   - bubbles/progress: Scan windows and capture countdowns
//   - bubbles/list: Device cards with filtering
//   - bubbles/help: Context-aware help system
//   - lipgloss: Styling and layout
//
// # Usage Example
//
//	// Create and run the wizard
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app := tui.NewAppModel(tui.ScreenDiscovery, nil, registry)
//	program := tea.NewProgram(app, tea.WithAltScreen())
//
//	final, err := program.Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if m, ok := final.(tui.AppModel); ok {
//	    m.Cleanup() // release any live device claim
//	}
//
// # Screen Flow
//
// The typical user flow through the wizard:
//
//  1. Discovery Screen:
//     - Broadcasts a probe and collects answers for the scan window
//     - Displays found devices as cards (nickname, kind, MAC, power state)
//     - Allows a directed probe by IP when broadcast doesn't reach a device
//     - User selects a device to control
//
//  2. Dashboard Screen:
//     - Claims a session with the device (sockets report power state in
//       the claim acknowledgement)
//     - Sockets: power badge plus Toggle / Refresh / Rename actions
//     - Blasters: saved signal library with capture and replay
//     - Capture runs against a 15 second button-press window with a
//       progress countdown
//     - RF433 replays require confirmation before transmitting
//
// Leaving the dashboard releases the device claim; the vendor firmware
// otherwise holds it for around three minutes, during which no other
// controller can claim the device.
//
// # Inline Editing System
//
// Renaming a device and naming a new capture use inline editors:
//   - The editor expands in place of the device panel
//   - Enter confirms, ESC cancels
//   - Text inputs use bubbles/textinput with validation
//   - Duplicate signal names are rejected before capture starts
//
// # Key Bindings
//
// Each screen has context-aware key bindings:
//   - Discovery: ↑/↓ navigate, Enter select, r rescan, m manual IP, q quit
//   - Dashboard (socket): t toggle, r refresh, n rename, esc back, q quit
//   - Dashboard (blaster): ↑/↓ select signal, e replay, l capture, n rename
//   - Editors: Enter confirm, ESC cancel, Tab switches ir/rf433 on capture
//
// Help text automatically updates based on screen state.
//
// # State Management
//
// The TUI maintains immutable state with explicit updates:
//   - Models contain all state (no global variables)
//   - Update() returns new model + commands
//   - View() is pure function of model state
//   - Commands represent async operations
//
// Device I/O runs inside commands; the device registry is only read and
// written from Update, so saves never race the YAML marshalling.
//
// # Error Handling
//
// Device errors surface in a failure modal with the short message and
// troubleshooting hints from the session package. Errors during the
// initial claim are fatal for the dashboard and return to discovery;
// everything later leaves the session usable.
//
// # Thread Safety
//
// The Bubble Tea framework ensures thread safety through message passing.
// All model updates occur in a single goroutine, preventing race conditions.
package tui
