package emulator

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

const (
	// DefaultClaimWindow matches how long real hardware honors a claim
	// after its holder goes quiet
	DefaultClaimWindow = 3 * time.Minute

	// claimSpacing mirrors the hardware dropping claim handshakes
	// fired too close together
	claimSpacing = 100 * time.Millisecond

	// receiveSlice bounds one silent stretch of the serve loop
	receiveSlice = 1 * time.Second
)

// Config holds the emulator configuration
type Config struct {
	Host     string
	Port     int
	LogLevel string

	// ClaimWindow is how long a claim stays live without renewal
	// (0 = DefaultClaimWindow). Tests shorten it to exercise lapse.
	ClaimWindow time.Duration

	// AnnounceAddr receives a copy of every state announcement when
	// set. Real hardware announces to the vendor port; pointing this
	// at a monitor's bind makes that observable without broadcasting.
	AnnounceAddr netip.AddrPort
}

// Server emulates a fleet of WiWo devices behind one UDP socket
type Server struct {
	config *Config
	conn   *transport.Conn
	wg     sync.WaitGroup

	mu      sync.Mutex
	devices map[protocol.MAC]*device

	started time.Time
}

// New creates a new emulator instance
func New(config *Config) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.ClaimWindow <= 0 {
		config.ClaimWindow = DefaultClaimWindow
	}

	return &Server{
		config:  config,
		devices: make(map[protocol.MAC]*device),
	}, nil
}

// AddSocket registers an emulated S20 socket with its initial relay
// state. Safe to call before or after the emulator starts.
func (s *Server) AddSocket(mac protocol.MAC, on bool) {
	s.addDevice(&device{mac: mac, kind: discovery.KindSocket, model: "SOC008", on: on})
}

// AddBlaster registers an emulated AllOne blaster.
func (s *Server) AddBlaster(mac protocol.MAC) {
	s.addDevice(&device{mac: mac, kind: discovery.KindBlaster, model: "IRD005"})
}

func (s *Server) addDevice(d *device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.mac] = d
}

// ListenAndServe binds the emulator's socket and starts answering in a
// background goroutine. The returned address is the actual bind, which
// matters when the configured port is 0.
func (s *Server) ListenAndServe() (netip.AddrPort, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	conn, err := transport.Open(addr, false)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to bind emulator socket: %w", err)
	}
	s.conn = conn
	s.started = time.Now()

	logging.Info("Emulator listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.Int("devices", s.deviceCount()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve()
	}()

	return conn.LocalAddr(), nil
}

// Start runs the emulator until an interrupt or termination signal
// arrives, then shuts down.
func (s *Server) Start() error {
	if _, err := s.ListenAndServe(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logging.Info("Shutdown signal received, stopping emulator...")
	return s.Shutdown(context.Background())
}

// Shutdown stops the emulator and waits for the serve loop to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down emulator...")

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logging.Error("Error closing emulator socket", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Emulator stopped")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing stop")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing stop")
	}

	logging.Sync()
	return nil
}

// PressButton flips a socket's relay as if its hardware button were
// pressed and announces the transition like the hardware does.
func (s *Server) PressButton(mac protocol.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.devices[mac]
	if d == nil {
		return fmt.Errorf("no such device: %s", mac)
	}
	if d.kind != discovery.KindSocket {
		return fmt.Errorf("%s is not a socket", mac)
	}
	d.on = !d.on
	s.announce(d)
	return nil
}

// PressRemote delivers a signal to a blaster in learn mode, as if a
// remote control were pointed at it. The capture goes to the claim
// holder and learn mode disarms, matching one-shot hardware capture.
func (s *Server) PressRemote(mac protocol.MAC, sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.devices[mac]
	if d == nil {
		return fmt.Errorf("no such device: %s", mac)
	}
	if d.kind != discovery.KindBlaster {
		return fmt.Errorf("%s is not a blaster", mac)
	}
	if !d.learning {
		return fmt.Errorf("%s is not in learn mode", mac)
	}
	if !d.claimLive(time.Now(), s.config.ClaimWindow) {
		return fmt.Errorf("%s has no claim holder to send the capture to", mac)
	}

	d.learning = false
	s.send(protocol.CmdLearn, protocol.CaptureReplyPayload(d.mac, sig), d.subscriber)
	return nil
}

// LastEmitted returns a copy of the last signal a blaster transmitted,
// or nil if it has not transmitted.
func (s *Server) LastEmitted(mac protocol.MAC) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.devices[mac]
	if d == nil || d.lastEmitted == nil {
		return nil
	}
	return append([]byte(nil), d.lastEmitted...)
}

// serve answers datagrams until the socket closes.
func (s *Server) serve() {
	for {
		data, src, err := s.conn.Receive(receiveSlice)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if errors.Is(err, transport.ErrClosed) {
				return
			}
			logging.Error("Receive failed", zap.Error(err))
			continue
		}
		s.dispatch(data, src)
	}
}

// dispatch routes one datagram to the device it addresses.
func (s *Server) dispatch(data []byte, src netip.AddrPort) {
	frame, err := protocol.Decode(data)
	if err != nil {
		logging.Debug("Dropping undecodable datagram",
			zap.String("from", src.String()),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	switch frame.Command {
	case protocol.CmdDiscover:
		s.handleDiscover(src, now)
	case protocol.CmdSubscribe:
		if d := s.deviceFor(frame.Payload); d != nil {
			s.handleClaim(d, src, now)
		}
	case protocol.CmdSetState:
		if d := s.deviceFor(frame.Payload); d != nil {
			s.handleSet(d, frame.Payload, src, now)
		}
	case protocol.CmdLearn:
		if d := s.deviceFor(frame.Payload); d != nil {
			s.handleLearn(d, src, now)
		}
	case protocol.CmdEmit:
		if d := s.deviceFor(frame.Payload); d != nil {
			s.handleEmit(d, frame.Payload, src, now)
		}
	case protocol.CmdUnsubscribe:
		if d := s.deviceFor(frame.Payload); d != nil {
			s.handleRelease(d, src, now)
		}
	default:
		logging.Debug("Dropping frame for unsupported command",
			zap.String("from", src.String()),
			zap.String("command", frame.Command.String()))
	}
}

// deviceFor resolves the device a command payload addresses. Command
// payloads open with the target's MAC.
func (s *Server) deviceFor(payload []byte) *device {
	if len(payload) < 6 {
		return nil
	}
	mac, err := protocol.MACFromBytes(payload[:6])
	if err != nil {
		return nil
	}
	return s.devices[mac]
}

func (s *Server) handleDiscover(src netip.AddrPort, now time.Time) {
	for _, d := range s.devices {
		d.claimLive(now, s.config.ClaimWindow)
		if d.wedged {
			logging.Debug("Wedged device staying out of discovery",
				zap.String("device", d.mac.String()))
			continue
		}
		clock := uint32(now.Sub(s.started) / time.Second)
		s.send(protocol.CmdDiscover,
			protocol.DiscoverReplyPayload(d.mac, d.model, clock, d.on), src)
	}
}

func (s *Server) handleClaim(d *device, src netip.AddrPort, now time.Time) {
	// Handshakes fired too close together get dropped
	tooSoon := !d.lastClaim.IsZero() && now.Sub(d.lastClaim) < claimSpacing
	d.lastClaim = now
	if tooSoon {
		logging.Debug("Dropping claim handshake fired too soon",
			zap.String("device", d.mac.String()))
		return
	}

	if d.claimLive(now, s.config.ClaimWindow) && d.subscriber != src {
		// A competing claim mid-subscription wedges the device out of
		// sight until the live claim lapses
		d.wedged = true
		logging.Debug("Device wedged by competing claim",
			zap.String("device", d.mac.String()),
			zap.String("holder", d.subscriber.String()),
			zap.String("challenger", src.String()))
		return
	}

	d.subscriber = src
	d.subscribedAt = now
	s.send(protocol.CmdSubscribe, protocol.StateAckPayload(d.mac, d.on), src)
}

func (s *Server) handleSet(d *device, payload []byte, src netip.AddrPort, now time.Time) {
	if d.kind != discovery.KindSocket {
		return
	}
	if !d.isSubscriber(src, now, s.config.ClaimWindow) {
		logging.Debug("Ignoring switch from non-subscriber",
			zap.String("device", d.mac.String()),
			zap.String("from", src.String()))
		return
	}
	if len(payload) == 0 {
		return
	}

	d.on = payload[len(payload)-1] == 0x01
	s.send(protocol.CmdSetState, protocol.StateAckPayload(d.mac, d.on), src)
	s.announce(d)
}

func (s *Server) handleLearn(d *device, src netip.AddrPort, now time.Time) {
	if d.kind != discovery.KindBlaster {
		return
	}
	if !d.isSubscriber(src, now, s.config.ClaimWindow) {
		return
	}

	d.learning = true
	s.send(protocol.CmdLearn, protocol.LearnAckPayload(d.mac), src)
}

func (s *Server) handleEmit(d *device, payload []byte, src netip.AddrPort, now time.Time) {
	if d.kind != discovery.KindBlaster {
		return
	}
	if !d.isSubscriber(src, now, s.config.ClaimWindow) {
		return
	}

	// Replay payload: identity, four flag bytes, two salt bytes, signal
	const header = 6 + 6 + 4 + 2
	if len(payload) <= header {
		return
	}
	d.lastEmitted = append([]byte(nil), payload[header:]...)
	logging.Debug("Device transmitted signal",
		zap.String("device", d.mac.String()),
		zap.Int("bytes", len(d.lastEmitted)))
	// Hardware sends no acknowledgement for replay
}

func (s *Server) handleRelease(d *device, src netip.AddrPort, now time.Time) {
	if !d.isSubscriber(src, now, s.config.ClaimWindow) {
		return
	}

	d.subscriber = netip.AddrPort{}
	d.wedged = false
	d.learning = false
	logging.Debug("Claim released", zap.String("device", d.mac.String()))
}

// announce pushes a state change to the claim holder and, when
// configured, to the announce address.
func (s *Server) announce(d *device) {
	payload := protocol.StateAckPayload(d.mac, d.on)
	if d.claimLive(time.Now(), s.config.ClaimWindow) {
		s.send(protocol.CmdStateEvent, payload, d.subscriber)
	}
	if s.config.AnnounceAddr.IsValid() {
		s.send(protocol.CmdStateEvent, payload, s.config.AnnounceAddr)
	}
}

// send encodes and transmits one frame. Failures are logged, not
// propagated; an emulated device has nobody to report to.
func (s *Server) send(cmd protocol.Command, payload []byte, dst netip.AddrPort) {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		logging.Error("Failed to encode reply",
			zap.String("command", cmd.String()),
			zap.Error(err))
		return
	}
	if err := s.conn.SendTo(data, dst); err != nil {
		logging.Debug("Failed to send reply",
			zap.String("to", dst.String()),
			zap.Error(err))
	}
}

func (s *Server) deviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}
