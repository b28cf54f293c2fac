package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/halloy/wiwo/internal/logging"
	"go.uber.org/zap"
)

// MaxDatagramSize bounds a single receive. The longest vendor frames are
// emit frames carrying a learned signal, observed well under this.
const MaxDatagramSize = 1024

// Transport errors. ErrTimeout is ordinary during discovery and learning
// and only an error when an acknowledgement was required; callers decide.
var (
	ErrBind    = errors.New("bind failed")
	ErrSend    = errors.New("send failed")
	ErrTimeout = errors.New("receive timed out")
	ErrClosed  = errors.New("endpoint closed")
)

var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// Conn is one bound UDP endpoint. It is exclusively owned by its creator;
// nothing here is safe for concurrent sends and receives from multiple
// goroutines beyond what the owner serializes itself.
type Conn struct {
	pc        *net.UDPConn
	broadcast bool

	mu     sync.Mutex
	closed bool
}

// Open binds a UDP endpoint on localAddr. Empty localAddr means an
// ephemeral port on all interfaces, which is what sessions use; the
// vendor port itself is only bound by components that genuinely listen
// there (the event monitor, the emulator).
//
// broadcast controls whether SendTo may target the limited broadcast
// address. The OS socket can always broadcast (Go enables SO_BROADCAST
// on UDP sockets); the flag is a policy guard so unicast-only endpoints
// fail loudly instead of spraying the LAN.
func Open(localAddr string, broadcast bool) (*Conn, error) {
	if localAddr == "" {
		localAddr = ":0"
	}
	addr, err := net.ResolveUDPAddr("udp4", localAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, localAddr, err)
	}
	pc, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, localAddr, err)
	}

	logging.Debug("endpoint open",
		zap.String("local", pc.LocalAddr().String()),
		zap.Bool("broadcast", broadcast),
	)
	return &Conn{pc: pc, broadcast: broadcast}, nil
}

// SendTo writes one datagram. Failures are not retried; the caller owns
// that decision.
func (c *Conn) SendTo(data []byte, dst netip.AddrPort) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.broadcast && dst.Addr() == limitedBroadcast {
		return fmt.Errorf("%w: endpoint opened without broadcast", ErrSend)
	}

	if _, err := c.pc.WriteToUDPAddrPort(data, dst); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("%w: %s: %v", ErrSend, dst, err)
	}
	logging.LogDatagram("send", dst.String(), data)
	return nil
}

// Receive blocks up to timeout for the next datagram and returns its
// bytes and source address. The timeout must be positive; it is the only
// cancellation mechanism this transport has.
func (c *Conn) Receive(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	if c.isClosed() {
		return nil, netip.AddrPort{}, ErrClosed
	}
	if err := c.pc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, MaxDatagramSize)
	n, src, err := c.pc.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, netip.AddrPort{}, ErrClosed
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, netip.AddrPort{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, netip.AddrPort{}, fmt.Errorf("receive: %w", err)
	}

	data := buf[:n]
	logging.LogDatagram("recv", src.String(), data)
	return data, src, nil
}

// LocalAddr returns the bound address, useful once an ephemeral port has
// been assigned.
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.pc.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close releases the socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.pc.Close(); err != nil {
		return fmt.Errorf("close endpoint: %w", err)
	}
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
