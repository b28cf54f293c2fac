package discovery

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/halloy/wiwo/internal/protocol"
)

// DeviceKind is the closed set of device variants this protocol knows.
// The kind is decided once, at discovery time, from the model marker in
// the identification reply; capability checks elsewhere key off it.
type DeviceKind int

const (
	KindUnknown DeviceKind = iota
	KindSocket             // S20 WiFi power socket ("SOC" models)
	KindBlaster            // AllOne IR/RF433 blaster ("IRD" models)
)

// KindFromModel classifies a device by the six-character model string in
// its identification reply. Anything unrecognized is KindUnknown and the
// caller drops the record rather than fabricating one.
func KindFromModel(model string) DeviceKind {
	switch {
	case strings.HasPrefix(model, "SOC"):
		return KindSocket
	case strings.HasPrefix(model, "IRD"):
		return KindBlaster
	default:
		return KindUnknown
	}
}

// String returns a human-readable kind name
func (k DeviceKind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindBlaster:
		return "blaster"
	default:
		return "unknown"
	}
}

// DeviceRecord describes one discovered device. Records are immutable
// once built; identity is the MAC, not the IP, which DHCP may move.
type DeviceRecord struct {
	// Kind is the device variant, decided from the model marker
	Kind DeviceKind

	// IP is the address the identification reply came from
	IP netip.Addr

	// MAC is the hardware address the device reported about itself
	MAC protocol.MAC

	// Model is the raw six-character model string (e.g., "SOC008")
	Model string

	// On is the power state at discovery time; meaningful for sockets
	On bool

	// DiscoveredAt is when the reply arrived
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the record
func (r *DeviceRecord) String() string {
	return fmt.Sprintf("%s %s (%s) at %s", r.Kind, r.Model, r.MAC, r.IP)
}

// AddrPort returns the device's command endpoint on the vendor port.
func (r *DeviceRecord) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(r.IP, protocol.VendorPort)
}
