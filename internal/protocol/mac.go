package protocol

import (
	"fmt"
	"net"
)

// MAC is the six-byte hardware address a device reports during discovery.
// It is the device's identity for the whole protocol: every command frame
// embeds it, and discovery deduplicates on it. Value semantics make it
// usable as a map key.
type MAC [6]byte

// ParseMAC accepts the usual textual forms ("ac:df:23:8d:1d:2e",
// "ac-df-23-8d-1d-2e", "acdf.238d.1d2e").
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("invalid MAC %q: %w", s, err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("invalid MAC %q: need 6 bytes, got %d", s, len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// MACFromBytes copies a wire-order six-byte slice into a MAC.
func MACFromBytes(b []byte) (MAC, error) {
	if len(b) != 6 {
		return MAC{}, fmt.Errorf("invalid MAC length %d", len(b))
	}
	var m MAC
	copy(m[:], b)
	return m, nil
}

// Reversed returns the byte-reversed address. Several payloads carry the
// MAC twice, forward then reversed.
func (m MAC) Reversed() MAC {
	var r MAC
	for i := range m {
		r[i] = m[5-i]
	}
	return r
}

// String formats as lower-case colon-separated hex.
func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}
