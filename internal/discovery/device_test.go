package discovery

import (
	"net/netip"
	"strings"
	"testing"
)

func TestKindFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  DeviceKind
	}{
		{"SOC008", KindSocket},
		{"SOC123", KindSocket},
		{"IRD005", KindBlaster},
		{"IRD010", KindBlaster},
		{"RFG001", KindUnknown},
		{"soc008", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		if got := KindFromModel(tt.model); got != tt.want {
			t.Errorf("KindFromModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestDeviceKindString(t *testing.T) {
	tests := []struct {
		kind DeviceKind
		want string
	}{
		{KindSocket, "socket"},
		{KindBlaster, "blaster"},
		{KindUnknown, "unknown"},
		{DeviceKind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("DeviceKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDeviceRecord(t *testing.T) {
	rec := DeviceRecord{
		Kind:  KindSocket,
		IP:    netip.MustParseAddr("192.168.1.45"),
		MAC:   mustMAC(t, "ac:df:23:8d:1d:2e"),
		Model: "SOC008",
		On:    true,
	}

	if got, want := rec.AddrPort().String(), "192.168.1.45:10000"; got != want {
		t.Errorf("AddrPort() = %q, want %q", got, want)
	}

	s := rec.String()
	for _, want := range []string{"socket", "SOC008", "ac:df:23:8d:1d:2e", "192.168.1.45"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
