package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/protocol"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	// Should not be empty
	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	// Should contain the application name
	if !strings.Contains(configDir, "wiwo") {
		t.Errorf("GetConfigDir() = %v, should contain 'wiwo'", configDir)
	}

	// Platform-specific checks
	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	// Should end with devices.yaml
	if filepath.Base(configPath) != "devices.yaml" {
		t.Errorf("GetConfigPath() should end with 'devices.yaml', got: %v", configPath)
	}

	t.Logf("Config path: %s", configPath)
}

func TestSignalDir(t *testing.T) {
	reg := NewRegistry()

	// Default: signals subdirectory under the config dir
	dir, err := reg.SignalDir()
	if err != nil {
		t.Fatalf("SignalDir() error = %v", err)
	}
	if filepath.Base(dir) != "signals" {
		t.Errorf("default SignalDir() = %v, should end with 'signals'", dir)
	}

	// Preference wins when set
	reg.Preferences.SignalDir = "/tmp/my-remotes"
	dir, err = reg.SignalDir()
	if err != nil {
		t.Fatalf("SignalDir() error = %v", err)
	}
	if dir != "/tmp/my-remotes" {
		t.Errorf("SignalDir() = %v, want preference value", dir)
	}
}

func TestSignalPath(t *testing.T) {
	reg := NewRegistry()
	reg.Preferences.SignalDir = "/tmp/my-remotes"

	tests := []struct {
		name       string
		signalName string
		want       string
	}{
		{
			name:       "plain name",
			signalName: "tv_power",
			want:       "/tmp/my-remotes/accf4378efdc-tv_power.sig",
		},
		{
			name:       "spaces and slashes are neutralized",
			signalName: "living room/ac on",
			want:       "/tmp/my-remotes/accf4378efdc-living_room_ac_on.sig",
		},
		{
			name:       "traversal cannot escape the signal dir",
			signalName: "../../etc/passwd",
			want:       "/tmp/my-remotes/accf4378efdc-.._.._etc_passwd.sig",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.SignalPath("ac:cf:43:78:ef:dc", tt.signalName)
			if err != nil {
				t.Fatalf("SignalPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SignalPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}

	if reg.Preferences == nil {
		t.Error("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.ScanWait != 3 {
		t.Errorf("NewRegistry().Preferences.ScanWait = %v, want 3", reg.Preferences.ScanWait)
	}

	if reg.Preferences.Broadcast != "255.255.255.255" {
		t.Errorf("NewRegistry().Preferences.Broadcast = %v, want 255.255.255.255", reg.Preferences.Broadcast)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	// First call should create device
	device1 := reg.EnsureDevice("ac:df:23:8d:1d:2e")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	// Second call should return same device
	device2 := reg.EnsureDevice("ac:df:23:8d:1d:2e")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same MAC")
	}

	// Different MAC should create new device
	device3 := reg.EnsureDevice("ac:cf:43:78:ef:dc")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different MAC")
	}
}

func TestRegistryRememberDevice(t *testing.T) {
	reg := NewRegistry()
	reg.SetDeviceNickname("ac:df:23:8d:1d:2e", "Desk Lamp")

	record := &discovery.DeviceRecord{
		Kind:  discovery.KindSocket,
		IP:    netip.MustParseAddr("192.168.1.45"),
		MAC:   protocol.MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e},
		Model: "SOC008",
	}

	before := time.Now()
	device := reg.RememberDevice(record)
	after := time.Now()

	if device.Kind != "socket" {
		t.Errorf("Kind = %v, want socket", device.Kind)
	}
	if device.Model != "SOC008" {
		t.Errorf("Model = %v, want SOC008", device.Model)
	}
	if device.LastIP != "192.168.1.45" {
		t.Errorf("LastIP = %v, want 192.168.1.45", device.LastIP)
	}
	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}

	// User metadata survives a re-discovery
	if device.Nickname != "Desk Lamp" {
		t.Errorf("Nickname = %v, should survive RememberDevice", device.Nickname)
	}
}

func TestRegistryUpdateDeviceLastSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateDeviceLastSeen("ac:df:23:8d:1d:2e", "192.168.1.45")
	after := time.Now()

	device := reg.GetDevice("ac:df:23:8d:1d:2e")
	if device == nil {
		t.Fatal("Device should exist after UpdateDeviceLastSeen()")
	}

	if device.LastIP != "192.168.1.45" {
		t.Errorf("LastIP = %v, want 192.168.1.45", device.LastIP)
	}

	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}
}

func TestRegistrySetDeviceNickname(t *testing.T) {
	reg := NewRegistry()

	reg.SetDeviceNickname("ac:df:23:8d:1d:2e", "Desk Lamp")

	device := reg.GetDevice("ac:df:23:8d:1d:2e")
	if device == nil {
		t.Fatal("Device should exist after SetDeviceNickname()")
	}

	if device.Nickname != "Desk Lamp" {
		t.Errorf("Nickname = %v, want 'Desk Lamp'", device.Nickname)
	}
}

func TestRegistrySetSignal(t *testing.T) {
	reg := NewRegistry()

	reg.SetSignal("ac:cf:43:78:ef:dc", "tv_power", "/home/u/.config/wiwo/signals/tv_power.sig", "ir")

	sig := reg.GetSignal("ac:cf:43:78:ef:dc", "tv_power")
	if sig == nil {
		t.Fatal("Signal should exist after SetSignal()")
	}

	if sig.Path != "/home/u/.config/wiwo/signals/tv_power.sig" {
		t.Errorf("Path = %v", sig.Path)
	}
	if sig.Kind != "ir" {
		t.Errorf("Kind = %v, want ir", sig.Kind)
	}
	if sig.CapturedAt.IsZero() {
		t.Error("CapturedAt should be stamped")
	}

	// Unknown lookups return nil rather than panicking
	if got := reg.GetSignal("ac:cf:43:78:ef:dc", "missing"); got != nil {
		t.Errorf("GetSignal(missing) = %v, want nil", got)
	}
	if got := reg.GetSignal("no:such:de:vi:ce:00", "tv_power"); got != nil {
		t.Errorf("GetSignal on unknown device = %v, want nil", got)
	}
}

func TestRegistryFindByNickname(t *testing.T) {
	reg := NewRegistry()
	reg.SetDeviceNickname("ac:df:23:8d:1d:2e", "Desk Lamp")

	mac, device := reg.FindByNickname("desk lamp")
	if device == nil {
		t.Fatal("FindByNickname should match case-insensitively")
	}
	if mac != "ac:df:23:8d:1d:2e" {
		t.Errorf("FindByNickname MAC = %v", mac)
	}

	if _, device := reg.FindByNickname("Garage Door"); device != nil {
		t.Error("FindByNickname should return nil for unknown nickname")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	testConfigPath := filepath.Join(tmpDir, "devices.yaml")

	// Create and populate registry
	reg := NewRegistry()
	reg.SetDeviceNickname("ac:df:23:8d:1d:2e", "Desk Lamp")
	reg.SetSignal("ac:cf:43:78:ef:dc", "tv_power", "/signals/tv_power.sig", "ir")
	reg.UpdateDeviceLastSeen("ac:df:23:8d:1d:2e", "192.168.1.45")

	if err := reg.saveTo(testConfigPath); err != nil {
		t.Fatalf("saveTo() error = %v", err)
	}

	// No temp file should remain after the atomic rename
	if _, err := os.Stat(testConfigPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after save")
	}

	// The header comment should survive in the file
	raw, err := os.ReadFile(testConfigPath)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# wiwo device registry") {
		t.Error("saved config missing header comment")
	}

	// Load from test path
	loadedReg, err := loadRegistryFromPath(testConfigPath)
	if err != nil {
		t.Fatalf("loadRegistryFromPath() error = %v", err)
	}

	// Verify loaded data
	device := loadedReg.GetDevice("ac:df:23:8d:1d:2e")
	if device == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if device.Nickname != "Desk Lamp" {
		t.Errorf("Loaded nickname = %v, want 'Desk Lamp'", device.Nickname)
	}
	if device.LastIP != "192.168.1.45" {
		t.Errorf("Loaded LastIP = %v, want 192.168.1.45", device.LastIP)
	}

	sig := loadedReg.GetSignal("ac:cf:43:78:ef:dc", "tv_power")
	if sig == nil {
		t.Fatal("Signal should exist in loaded registry")
	}
	if sig.Path != "/signals/tv_power.sig" {
		t.Errorf("Loaded signal path = %v", sig.Path)
	}
}

func TestLoadRegistryFromPath_Missing(t *testing.T) {
	reg, err := loadRegistryFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("a missing file should produce a default registry, got error: %v", err)
	}
	if reg.Version != 1 || reg.Preferences == nil {
		t.Error("missing file should yield NewRegistry() defaults")
	}
}

func TestLoadRegistryFromPath_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("version: 9\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadRegistryFromPath(path); err == nil {
		t.Error("expected an error for an unsupported config version")
	}
}

func TestKindDefinitions(t *testing.T) {
	expectedKinds := []string{"socket", "blaster", "unknown"}

	for _, kind := range expectedKinds {
		if _, exists := KindDefinitions[kind]; !exists {
			t.Errorf("KindDefinitions missing kind: %s", kind)
		}

		if _, exists := KindIcons[kind]; !exists {
			t.Errorf("KindIcons missing kind: %s", kind)
		}
	}
}

// Benchmark tests

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("ac:df:23:8d:1d:2e")
	}
}
