// Package config provides user configuration management for wiwo.
//
// This package manages a YAML-based registry that stores user-defined
// metadata for discovered devices: nicknames, the last address each
// device answered from, and the library of captured IR/RF433 signals.
// Devices are keyed by MAC address because it is the only identifier
// that survives DHCP lease changes.
//
// # Configuration File Location
//
// The registry is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wiwo/devices.yaml or $HOME/.config/wiwo/devices.yaml
//   - macOS: $HOME/.config/wiwo/devices.yaml
//   - Windows: %LOCALAPPDATA%\wiwo\devices.yaml
//
// Captured signals live as separate files (by default under a signals/
// subdirectory next to the registry); the registry records only their
// paths.
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a scan result and name the device
//	registry.RememberDevice(record)
//	registry.SetDeviceNickname(record.MAC.String(), "Desk Lamp")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
