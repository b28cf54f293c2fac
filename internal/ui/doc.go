// Package ui provides terminal UI components for the wiwo-ctl CLI.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal output
// for device commands. Unlike the interactive TUI wizard, these components follow
// a "run once and exit" pattern - they render output compellingly but don't
// require user interaction.
//
// # Architecture
//
// The UI package provides four main component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Progress bar with step list showing real-time status
//   - Result: Success/failure boxes with styled information
//   - SignalDump: Hex dump box for captured signal bytes in verbose mode
//
// These components are orchestrated by the Runner, which manages the
// header, progress and result flow for device command execution.
//
// # Usage Pattern
//
// Device commands use this package by:
//
//  1. Creating a Runner with command metadata
//  2. Calling Run() with their operation function
//  3. The operation reports progress via a step callback
//  4. Runner handles all UI rendering automatically
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Signal Capture",
//	    Command:    "wiwo-ctl learn",
//	    Params:     map[string]string{"Device": "192.168.1.37"},
//	    TotalSteps: 4,
//	    Verbose:    verbose,
//	})
//
//	err := runner.Run(ctx, func(onStep ui.StepCallback) error {
//	    onStep(1, "Claiming device", ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, "Claiming device", ui.StepComplete, "")
//	    return nil
//	})
//
// # Logging Integration
//
// This package expects logging to be controlled via the WIWO_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly. Set WIWO_LOG_LEVEL to
// "debug", "info", "warn", or "error" to enable logging output.
//
// # Verbose Mode
//
// When --verbose is passed to capture and replay commands, the SignalDump
// component displays the raw signal bytes in a styled box after the result.
// This is useful for comparing captures of the same remote button.
package ui
