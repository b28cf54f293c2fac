package emulator

import (
	"net/netip"
	"time"

	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/protocol"
)

// device is one emulated unit. All access goes through the server's
// lock; the serve loop and test hooks share it.
type device struct {
	mac   protocol.MAC
	kind  discovery.DeviceKind
	model string

	// on is the relay state; meaningful for sockets only
	on bool

	// subscriber is the one controller whose commands are honored.
	// Real hardware holds a single claim at a time.
	subscriber   netip.AddrPort
	subscribedAt time.Time

	// lastClaim is when the last claim handshake arrived, honored or
	// not; handshakes spaced too close get dropped like the hardware
	// drops them
	lastClaim time.Time

	// wedged mimics the hardware falling out of discovery after a
	// second controller tried to claim it mid-subscription
	wedged bool

	learning    bool
	lastEmitted []byte
}

// claimLive reports whether the current claim is still fresh, lapsing
// it as a side effect when its holder has gone quiet too long. A
// lapsed claim also clears the wedge, matching hardware that returns
// to discovery on its own.
func (d *device) claimLive(now time.Time, window time.Duration) bool {
	if !d.subscriber.IsValid() {
		return false
	}
	if now.Sub(d.subscribedAt) > window {
		d.subscriber = netip.AddrPort{}
		d.wedged = false
		d.learning = false
		return false
	}
	return true
}

// isSubscriber reports whether src holds the current claim.
func (d *device) isSubscriber(src netip.AddrPort, now time.Time, window time.Duration) bool {
	return d.claimLive(now, window) && d.subscriber == src
}
