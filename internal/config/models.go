package config

import (
	"strings"
	"time"

	"github.com/halloy/wiwo/internal/discovery"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device MAC address
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single device.
// This is keyed by the device's MAC address in the Registry.
type Device struct {
	Nickname string                 `yaml:"nickname,omitempty"`  // User-friendly name
	Kind     string                 `yaml:"kind,omitempty"`      // "socket" or "blaster"
	Model    string                 `yaml:"model,omitempty"`     // Model code from discovery (e.g. "SOC008")
	LastIP   string                 `yaml:"last_ip,omitempty"`   // Last known IP address
	LastSeen time.Time              `yaml:"last_seen,omitempty"` // Last discovery/connection time
	Signals  map[string]*SignalMeta `yaml:"signals,omitempty"`   // Captured signals (keyed by signal name)
}

// SignalMeta represents a captured IR or RF433 signal saved to disk.
// Only the file reference is kept here; the raw bytes live in the file.
type SignalMeta struct {
	Path       string    `yaml:"path"`                  // Saved capture file
	Kind       string    `yaml:"kind"`                  // "ir" or "rf433"
	CapturedAt time.Time `yaml:"captured_at,omitempty"` // When the capture was taken
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ScanWait  int    `yaml:"scan_wait"`            // Discovery collection window in seconds
	Broadcast string `yaml:"broadcast,omitempty"`  // Broadcast address for discovery
	SignalDir string `yaml:"signal_dir,omitempty"` // Where captured signals are stored (empty = config dir)
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			ScanWait:  3,
			Broadcast: "255.255.255.255",
		},
	}
}

// GetDevice retrieves device metadata by MAC address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(mac string) *Device {
	return r.Devices[mac]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(mac string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[mac]; exists {
		return device
	}

	// Create new device entry
	device := &Device{
		Signals: make(map[string]*SignalMeta),
	}
	r.Devices[mac] = device
	return device
}

// RememberDevice records a discovery result, updating kind, model,
// address and the last seen timestamp while preserving user metadata.
func (r *Registry) RememberDevice(record *discovery.DeviceRecord) *Device {
	device := r.EnsureDevice(record.MAC.String())
	device.Kind = record.Kind.String()
	device.Model = record.Model
	device.LastIP = record.IP.String()
	device.LastSeen = time.Now()
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp and IP for a device.
func (r *Registry) UpdateDeviceLastSeen(mac, ip string) {
	device := r.EnsureDevice(mac)
	device.LastSeen = time.Now()
	device.LastIP = ip
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(mac, nickname string) {
	device := r.EnsureDevice(mac)
	device.Nickname = nickname
}

// SetSignal records a captured signal for a device.
func (r *Registry) SetSignal(mac, name, path, kind string) {
	device := r.EnsureDevice(mac)

	if device.Signals == nil {
		device.Signals = make(map[string]*SignalMeta)
	}

	device.Signals[name] = &SignalMeta{
		Path:       path,
		Kind:       kind,
		CapturedAt: time.Now(),
	}
}

// GetSignal retrieves a named signal for a device.
// Returns nil if the device or signal doesn't exist.
func (r *Registry) GetSignal(mac, name string) *SignalMeta {
	device := r.GetDevice(mac)
	if device == nil {
		return nil
	}
	return device.Signals[name]
}

// FindByNickname looks up a device by its user-assigned nickname.
// The match is case-insensitive. Returns the MAC key and the device,
// or "" and nil when no device carries that nickname.
func (r *Registry) FindByNickname(nickname string) (string, *Device) {
	for mac, device := range r.Devices {
		if device.Nickname != "" && strings.EqualFold(device.Nickname, nickname) {
			return mac, device
		}
	}
	return "", nil
}

// KindDefinitions maps device kind identifiers to human-readable names.
// This is used for display and validation purposes.
var KindDefinitions = map[string]string{
	"socket":  "WiFi Power Socket",
	"blaster": "IR/RF433 Remote Blaster",
	"unknown": "Unknown Device",
}

// KindIcons maps device kind identifiers to default emoji icons.
var KindIcons = map[string]string{
	"socket":  "🔌",
	"blaster": "📡",
	"unknown": "❓",
}
