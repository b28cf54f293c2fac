package discovery

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

// Event is one unsolicited state change pushed by a device. Devices
// announce every power transition to their current subscriber, whether
// it came from a command, the hardware button, or the vendor app.
type Event struct {
	// MAC identifies the device that changed
	MAC protocol.MAC

	// On is the power state after the change
	On bool

	// Addr is the host the announcement came from
	Addr netip.Addr

	// At is when the announcement arrived
	At time.Time
}

// String returns a human-readable string representation of the event
func (e *Event) String() string {
	state := "off"
	if e.On {
		state = "on"
	}
	return fmt.Sprintf("%s is now %s (from %s)", e.MAC, state, e.Addr)
}

// Monitor listens for state change announcements. Devices push them to
// the vendor port, so the default bind claims that port and conflicts
// with anything else listening on it; pass an explicit bindAddr to
// share a host with another listener.
type Monitor struct {
	conn *transport.Conn
}

// NewMonitor opens a listener for state change announcements. An empty
// bindAddr binds the vendor port on all interfaces.
func NewMonitor(bindAddr string) (*Monitor, error) {
	if bindAddr == "" {
		bindAddr = fmt.Sprintf(":%d", protocol.VendorPort)
	}
	conn, err := transport.Open(bindAddr, false)
	if err != nil {
		return nil, err
	}
	logging.Info("Monitoring for state changes",
		zap.String("listen", conn.LocalAddr().String()))
	return &Monitor{conn: conn}, nil
}

// LocalAddr returns the address the monitor is bound to.
func (m *Monitor) LocalAddr() netip.AddrPort {
	return m.conn.LocalAddr()
}

// Next blocks until a state change arrives or the timeout elapses.
// Traffic that is not a state change announcement is skipped without
// consuming the timeout budget beyond the time it took to arrive.
func (m *Monitor) Next(timeout time.Duration) (*Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: no state change within %s",
				transport.ErrTimeout, timeout)
		}
		data, src, err := m.conn.Receive(remaining)
		if err != nil {
			return nil, err
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			logging.Debug("Ignoring undecodable datagram",
				zap.String("from", src.String()),
				zap.Error(err))
			continue
		}
		if frame.Command != protocol.CmdStateEvent {
			logging.Debug("Ignoring non-event frame",
				zap.String("from", src.String()),
				zap.String("command", frame.Command.String()))
			continue
		}
		mac, on, err := protocol.ParseStateEvent(frame)
		if err != nil {
			logging.Debug("Ignoring malformed state event",
				zap.String("from", src.String()),
				zap.Error(err))
			continue
		}
		ev := &Event{
			MAC:  mac,
			On:   on,
			Addr: src.Addr().Unmap(),
			At:   time.Now(),
		}
		logging.Debug("State change", zap.String("event", ev.String()))
		return ev, nil
	}
}

// Close releases the monitor's socket. A Next call blocked in Receive
// returns with an error once the socket closes.
func (m *Monitor) Close() error {
	return m.conn.Close()
}
