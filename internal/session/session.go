package session

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

const (
	// DefaultTimeout bounds a single reply wait
	DefaultTimeout = 1 * time.Second

	// DefaultRetries is how many times a request is resent after a
	// silent wait
	DefaultRetries = 2

	// DefaultLearnWindow is how long a capture poll runs when the
	// caller does not say otherwise
	DefaultLearnWindow = 15 * time.Second

	// subscribeSpacing is the minimum gap between claim handshakes.
	// Devices answer handshakes fired closer together unreliably.
	subscribeSpacing = 100 * time.Millisecond
)

// State tracks where a session is in its lifecycle
type State int

const (
	// StateClosed means no socket is bound
	StateClosed State = iota
	// StateOpen means a socket is bound but the device is not claimed
	StateOpen
	// StateSubscribed means the device acknowledged our claim
	StateSubscribed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSubscribed:
		return "subscribed"
	default:
		return "closed"
	}
}

// Session drives one device through the command protocol. A session is
// not safe for concurrent use; the protocol is strictly one request,
// one reply on a single socket.
type Session struct {
	// Timeout bounds a single reply wait
	Timeout time.Duration

	// Retries is how many times a request is resent after a silent wait
	Retries int

	// Port is the device command port
	Port uint16

	// LocalAddr optionally pins the local bind address. Empty binds an
	// ephemeral port, which devices answer regardless; the vendor port
	// stays free for a Monitor or another session.
	LocalAddr string

	record  discovery.DeviceRecord
	conn    *transport.Conn
	state   State
	limiter *rate.Limiter
}

// New creates a session for a discovered device. The session starts
// closed; Open binds its socket.
func New(record *discovery.DeviceRecord) *Session {
	return &Session{
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		Port:    protocol.VendorPort,
		record:  *record,
		state:   StateClosed,
		limiter: rate.NewLimiter(rate.Every(subscribeSpacing), 1),
	}
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	return s.state
}

// Open binds the session's socket. Opening an already open session is a
// no-op; a closed session can be reopened.
func (s *Session) Open() error {
	if s.state != StateClosed {
		return nil
	}
	if !s.record.IP.IsValid() {
		return s.fail(NewTransportError("device record has no usable address", nil))
	}
	conn, err := transport.Open(s.LocalAddr, false)
	if err != nil {
		return s.fail(NewTransportError("failed to bind session socket", err))
	}
	s.conn = conn
	s.state = StateOpen
	logging.Debug("Session open",
		zap.String("device", s.record.MAC.String()),
		zap.String("local", conn.LocalAddr().String()))
	return nil
}

// Subscribe claims the device. Commands are only honored from the
// claim's source address, so every session starts here. Subscribing an
// already subscribed session renews the claim; a closed session is
// opened first.
func (s *Session) Subscribe() error {
	if s.state == StateClosed {
		if err := s.Open(); err != nil {
			return err
		}
	}
	_, err := s.subscribeExchange()
	return err
}

// QueryState reads the socket's power state. The protocol has no
// dedicated poll; the claim handshake is re-run and the state taken
// from its acknowledgement. The session ends up subscribed as a side
// effect.
func (s *Session) QueryState() (bool, error) {
	if s.record.Kind != discovery.KindSocket {
		return false, s.fail(NewUnsupportedError("reading power state", s.record.Kind.String()))
	}
	if s.state == StateClosed {
		if err := s.Open(); err != nil {
			return false, err
		}
	}
	return s.subscribeExchange()
}

// SetState switches the socket and returns the state confirmed by a
// fresh read afterwards. The switch acknowledgement races the relay,
// so it is not trusted as confirmation.
func (s *Session) SetState(on bool) (bool, error) {
	if s.record.Kind != discovery.KindSocket {
		return false, s.fail(NewUnsupportedError("switching power", s.record.Kind.String()))
	}
	if s.state != StateSubscribed {
		return false, s.fail(NewNotSubscribedError("switching power"))
	}

	request, err := protocol.Encode(protocol.CmdSetState, protocol.SetStatePayload(s.record.MAC, on))
	if err != nil {
		return false, s.fail(NewProtocolError("failed to build switch command", err))
	}
	if _, err := s.exchange(request, protocol.CmdSetState); err != nil {
		return false, err
	}
	return s.subscribeExchange()
}

// Toggle reads the socket's state and switches it to the opposite,
// returning the confirmed new state.
func (s *Session) Toggle() (bool, error) {
	current, err := s.QueryState()
	if err != nil {
		return false, err
	}
	return s.SetState(!current)
}

// LearnSignal puts the blaster into learn mode and waits up to window
// for a button press on a remote pointed at it. A window that closes
// with nothing captured returns no signal and no error; pressing
// nothing is not a fault. Entry into learn mode is acknowledged by the
// device and that acknowledgement is required.
func (s *Session) LearnSignal(window time.Duration) ([]byte, error) {
	if s.record.Kind != discovery.KindBlaster {
		return nil, s.fail(NewUnsupportedError("capturing signals", s.record.Kind.String()))
	}
	if s.state != StateSubscribed {
		return nil, s.fail(NewNotSubscribedError("capturing signals"))
	}
	if window <= 0 {
		window = DefaultLearnWindow
	}

	request, err := protocol.Encode(protocol.CmdLearn, protocol.LearnPayload(s.record.MAC))
	if err != nil {
		return nil, s.fail(NewProtocolError("failed to build learn command", err))
	}

	// The arming acknowledgement and the capture share a command code.
	// The capture carries the signal after the device identity, the
	// acknowledgement stops there, so a fast button press can hand us
	// the capture in place of the acknowledgement.
	frame, err := s.exchange(request, protocol.CmdLearn)
	if err != nil {
		return nil, err
	}
	if signal, err := protocol.ParseCaptureReply(frame, s.record.MAC); err == nil {
		return signal, nil
	}

	logging.Info("Learn mode armed",
		zap.String("device", s.record.MAC.String()),
		zap.Duration("window", window))

	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logging.Info("Learn window closed without a capture",
				zap.String("device", s.record.MAC.String()))
			return nil, nil
		}
		data, src, err := s.conn.Receive(remaining)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return nil, s.fail(NewTransportError("failed while waiting for a capture", err))
		}
		if src.Addr().Unmap() != s.record.IP.Unmap() {
			continue
		}
		frame, err := protocol.Decode(data)
		if err != nil || frame.Command != protocol.CmdLearn {
			continue
		}
		signal, err := protocol.ParseCaptureReply(frame, s.record.MAC)
		if err != nil {
			// Another copy of the arming acknowledgement; keep waiting
			continue
		}
		logging.Info("Captured signal",
			zap.String("device", s.record.MAC.String()),
			zap.Int("bytes", len(signal)))
		return signal, nil
	}
}

// EmitSignal replays a captured signal through the blaster. Replay
// commands are not acknowledged, so a nil error means the command was
// sent, not that anything received the transmission.
func (s *Session) EmitSignal(sig []byte) error {
	if s.record.Kind != discovery.KindBlaster {
		return s.fail(NewUnsupportedError("replaying signals", s.record.Kind.String()))
	}
	if s.state != StateSubscribed {
		return s.fail(NewNotSubscribedError("replaying signals"))
	}
	if len(sig) == 0 {
		return s.fail(NewProtocolError("refusing to replay an empty signal", nil))
	}

	request, err := protocol.Encode(protocol.CmdEmit, protocol.EmitPayload(s.record.MAC, sig))
	if err != nil {
		return s.fail(NewProtocolError("signal too large for one datagram", err))
	}
	if err := s.conn.SendTo(request, s.deviceAddr()); err != nil {
		return s.fail(NewTransportError("failed to send replay command", err))
	}
	logging.Info("Replayed signal",
		zap.String("device", s.record.MAC.String()),
		zap.Int("bytes", len(sig)))
	return nil
}

// Close releases the session. A subscribed session tells the device to
// drop the claim first; that farewell is best effort and its failure is
// logged, not returned. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	if s.state == StateSubscribed {
		farewell, err := protocol.Encode(protocol.CmdUnsubscribe, protocol.UnsubscribePayload(s.record.MAC))
		if err == nil {
			err = s.conn.SendTo(farewell, s.deviceAddr())
		}
		if err != nil {
			logging.Warn("Failed to send unsubscribe on close",
				zap.String("device", s.record.MAC.String()),
				zap.Error(err))
		}
	}
	err := s.conn.Close()
	s.conn = nil
	s.state = StateClosed
	if err != nil {
		return s.fail(NewTransportError("failed to close session socket", err))
	}
	return nil
}

// subscribeExchange runs one claim handshake and returns the power
// state carried by its acknowledgement.
func (s *Session) subscribeExchange() (bool, error) {
	// Pace the handshakes; see subscribeSpacing
	if d := s.limiter.Reserve().Delay(); d > 0 {
		time.Sleep(d)
	}

	request, err := protocol.Encode(protocol.CmdSubscribe, protocol.SubscribePayload(s.record.MAC))
	if err != nil {
		return false, s.fail(NewProtocolError("failed to build claim handshake", err))
	}
	frame, err := s.exchange(request, protocol.CmdSubscribe)
	if err != nil {
		return false, err
	}
	if err := s.verifyAckIdentity(frame); err != nil {
		return false, err
	}
	on, err := protocol.ParseStateAck(frame)
	if err != nil {
		return false, s.fail(NewProtocolError("unusable claim acknowledgement", err))
	}
	s.state = StateSubscribed
	logging.Debug("Subscribed",
		zap.String("device", s.record.MAC.String()),
		zap.Bool("on", on))
	return on, nil
}

// verifyAckIdentity checks that a claim acknowledgement names this
// session's device. Source address filtering already rejects other
// hosts; this catches a relay or misconfigured device answering for
// someone else's hardware.
func (s *Session) verifyAckIdentity(frame *protocol.Frame) error {
	if len(frame.Payload) < 6 {
		return s.fail(NewSubscribeRejectedError("claim acknowledgement names no device"))
	}
	mac, err := protocol.MACFromBytes(frame.Payload[:6])
	if err != nil || mac != s.record.MAC {
		return s.fail(NewSubscribeRejectedError(
			fmt.Sprintf("claim acknowledgement names %s, want %s", mac, s.record.MAC)))
	}
	return nil
}

// exchange sends a request and waits for the device's reply to it,
// resending after each silent wait. Datagrams from other hosts and
// frames for other commands are skipped without ending the wait.
func (s *Session) exchange(request []byte, want protocol.Command) (*protocol.Frame, error) {
	attempts := s.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.conn.SendTo(request, s.deviceAddr()); err != nil {
			return nil, s.fail(NewTransportError("failed to send command", err))
		}
		frame, err := s.await(want)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, transport.ErrTimeout) {
			return nil, s.fail(NewTransportError("failed while waiting for a reply", err))
		}
		logging.Debug("Reply wait elapsed",
			zap.String("command", want.String()),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts))
	}
	return nil, s.fail(NewTimeoutError(
		fmt.Sprintf("no %s reply after %d attempts", want, attempts),
		transport.ErrTimeout))
}

// await reads frames until one from the device carries the wanted
// command or the timeout elapses.
func (s *Session) await(want protocol.Command) (*protocol.Frame, error) {
	deadline := time.Now().Add(s.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w after %s", transport.ErrTimeout, s.Timeout)
		}
		data, src, err := s.conn.Receive(remaining)
		if err != nil {
			return nil, err
		}
		if src.Addr().Unmap() != s.record.IP.Unmap() {
			logging.Debug("Ignoring datagram from unexpected host",
				zap.String("from", src.String()),
				zap.String("want", s.record.IP.String()))
			continue
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			logging.Debug("Ignoring undecodable datagram",
				zap.String("from", src.String()),
				zap.Error(err))
			continue
		}
		if frame.Command != want {
			logging.Debug("Ignoring frame for another command",
				zap.String("got", frame.Command.String()),
				zap.String("want", want.String()))
			continue
		}
		return frame, nil
	}
}

// deviceAddr is the device's command endpoint.
func (s *Session) deviceAddr() netip.AddrPort {
	return netip.AddrPortFrom(s.record.IP, s.Port)
}

// fail stamps the device address onto an error before returning it.
func (s *Session) fail(e *SessionError) error {
	e.DeviceIP = s.record.IP.String()
	return e
}
