package discovery

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

// Default scan tuning. Devices answer a broadcast probe within a few
// hundred milliseconds on a quiet network; three seconds catches
// stragglers waking from WiFi power save.
const (
	DefaultWait    = 3 * time.Second
	DefaultTimeout = 1 * time.Second
)

// DefaultBroadcast is the limited broadcast address probes go to.
var DefaultBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// ErrDeviceNotFound is returned when a directed probe gets no reply
// before its window closes.
var ErrDeviceNotFound = errors.New("device not found")

// Scanner probes the local network for devices. The zero value is not
// usable; construct with NewScanner and override fields as needed.
type Scanner struct {
	// Wait is the total collection window for a broadcast scan
	Wait time.Duration

	// Timeout bounds a single silent stretch on the socket. For a
	// directed probe it is the whole reply window.
	Timeout time.Duration

	// Broadcast is the address broadcast probes are sent to
	Broadcast netip.Addr

	// Port is the device command port probes are addressed to
	Port uint16

	// LocalAddr optionally pins the local bind address. Empty binds an
	// ephemeral port on all interfaces, which is what you want unless
	// the host has multiple NICs on different segments.
	LocalAddr string
}

// NewScanner returns a scanner with default tuning.
func NewScanner() *Scanner {
	return &Scanner{
		Wait:      DefaultWait,
		Timeout:   DefaultTimeout,
		Broadcast: DefaultBroadcast,
		Port:      protocol.VendorPort,
	}
}

// DiscoverAll broadcasts an identification probe and collects replies
// until the wait window closes. Records are keyed by the address the
// reply came from. A device that answers more than once, or reaches us
// over more than one route, is recorded once; the first reply wins.
func (s *Scanner) DiscoverAll() (map[string]DeviceRecord, error) {
	conn, err := transport.Open(s.LocalAddr, true)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	probe, err := protocol.Encode(protocol.CmdDiscover, nil)
	if err != nil {
		return nil, err
	}
	dst := netip.AddrPortFrom(s.Broadcast, s.Port)
	if err := conn.SendTo(probe, dst); err != nil {
		return nil, err
	}

	logging.Info("Scanning for devices",
		zap.String("broadcast", dst.String()),
		zap.Duration("wait", s.Wait))

	col := newCollector()
	deadline := time.Now().Add(s.Wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		slice := remaining
		if s.Timeout > 0 && slice > s.Timeout {
			slice = s.Timeout
		}
		data, src, err := conn.Receive(slice)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return col.records, err
		}
		col.add(data, src, time.Now())
	}

	logging.Info("Scan complete", zap.Int("devices", len(col.records)))
	return col.records, nil
}

// DiscoverOne sends an identification probe straight to one host and
// waits for its reply. Replies from any other host are ignored. If the
// window closes without a usable reply the error wraps
// ErrDeviceNotFound.
func (s *Scanner) DiscoverOne(target netip.Addr) (*DeviceRecord, error) {
	conn, err := transport.Open(s.LocalAddr, false)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	probe, err := protocol.Encode(protocol.CmdDiscover, nil)
	if err != nil {
		return nil, err
	}
	dst := netip.AddrPortFrom(target, s.Port)
	if err := conn.SendTo(probe, dst); err != nil {
		return nil, err
	}

	logging.Debug("Probing device",
		zap.String("target", dst.String()),
		zap.Duration("timeout", s.Timeout))

	col := newCollector()
	deadline := time.Now().Add(s.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: no reply from %s within %s",
				ErrDeviceNotFound, target, s.Timeout)
		}
		data, src, err := conn.Receive(remaining)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return nil, err
		}
		if src.Addr().Unmap() != target.Unmap() {
			logging.Debug("Ignoring reply from unexpected host",
				zap.String("from", src.String()),
				zap.String("want", target.String()))
			continue
		}
		if rec, ok := col.add(data, src, time.Now()); ok {
			return rec, nil
		}
	}
}

// DiscoverAll runs a broadcast scan with default tuning. A positive
// wait overrides the collection window.
func DiscoverAll(wait time.Duration) (map[string]DeviceRecord, error) {
	s := NewScanner()
	if wait > 0 {
		s.Wait = wait
	}
	return s.DiscoverAll()
}

// QuickScan runs a broadcast scan with default tuning.
func QuickScan() (map[string]DeviceRecord, error) {
	return NewScanner().DiscoverAll()
}

// FindDevice probes a single host given as a textual IP address.
func FindDevice(ip string) (*DeviceRecord, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q: %w", ip, err)
	}
	return NewScanner().DiscoverOne(addr)
}

// collector accumulates identification replies, one record per device.
// Devices identify by MAC; the same MAC arriving again in one scan is a
// retransmit or a second route to the same hardware, not a new device.
type collector struct {
	records map[string]DeviceRecord
	seen    map[protocol.MAC]bool
}

func newCollector() *collector {
	return &collector{
		records: make(map[string]DeviceRecord),
		seen:    make(map[protocol.MAC]bool),
	}
}

// add parses one datagram and records it if it is a well-formed
// identification reply from a device not yet seen in this scan. The
// boolean reports whether a record was added.
func (c *collector) add(data []byte, src netip.AddrPort, at time.Time) (*DeviceRecord, bool) {
	frame, err := protocol.Decode(data)
	if err != nil {
		logging.Debug("Ignoring undecodable datagram",
			zap.String("from", src.String()),
			zap.Error(err))
		return nil, false
	}
	if frame.Command != protocol.CmdDiscover {
		logging.Debug("Ignoring non-identification frame during scan",
			zap.String("from", src.String()),
			zap.String("command", frame.Command.String()))
		return nil, false
	}
	reply, err := protocol.ParseDiscoverReply(frame)
	if err != nil {
		logging.Debug("Ignoring malformed identification reply",
			zap.String("from", src.String()),
			zap.Error(err))
		return nil, false
	}
	kind := KindFromModel(reply.Model)
	if kind == KindUnknown {
		logging.Debug("Ignoring device with unrecognized model",
			zap.String("from", src.String()),
			zap.String("model", reply.Model))
		return nil, false
	}
	if c.seen[reply.MAC] {
		return nil, false
	}
	c.seen[reply.MAC] = true

	ip := src.Addr().Unmap()
	rec := DeviceRecord{
		Kind:         kind,
		IP:           ip,
		MAC:          reply.MAC,
		Model:        reply.Model,
		On:           reply.On,
		DiscoveredAt: at,
	}
	c.records[ip.String()] = rec
	logging.Debug("Recorded device", zap.String("device", rec.String()))
	return &rec, true
}
