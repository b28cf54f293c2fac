package transport

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"
	"time"
)

func TestSendReceive(t *testing.T) {
	a, err := Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	b, err := Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	msg := []byte{0x68, 0x64, 0x00, 0x06, 0x71, 0x61}
	if err := a.SendTo(msg, b.LocalAddr()); err != nil {
		t.Fatalf("SendTo() error = %v", err)
	}

	got, src, err := b.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("received % x, want % x", got, msg)
	}
	if src != a.LocalAddr() {
		t.Errorf("source = %s, want %s", src, a.LocalAddr())
	}
}

func TestReceiveTimeout(t *testing.T) {
	c, err := Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	timeout := 200 * time.Millisecond
	start := time.Now()
	_, _, err = c.Receive(timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Receive() error = %v, want ErrTimeout", err)
	}
	if elapsed < timeout {
		t.Errorf("returned after %s, before the %s timeout", elapsed, timeout)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("returned after %s, well past the %s timeout", elapsed, timeout)
	}
}

func TestBindErrors(t *testing.T) {
	t.Run("port already in use", func(t *testing.T) {
		first, err := Open("127.0.0.1:0", false)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer first.Close()

		_, err = Open(first.LocalAddr().String(), false)
		if !errors.Is(err, ErrBind) {
			t.Errorf("Open() error = %v, want ErrBind", err)
		}
	})

	t.Run("unparseable address", func(t *testing.T) {
		_, err := Open("not-an-address:not-a-port", false)
		if !errors.Is(err, ErrBind) {
			t.Errorf("Open() error = %v, want ErrBind", err)
		}
	})
}

func TestBroadcastGuard(t *testing.T) {
	c, err := Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	dst := netip.MustParseAddrPort("255.255.255.255:10000")
	err = c.SendTo([]byte{0x68, 0x64}, dst)
	if !errors.Is(err, ErrSend) {
		t.Errorf("SendTo(broadcast) error = %v, want ErrSend", err)
	}
}

func TestClose(t *testing.T) {
	c, err := Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	if err := c.SendTo([]byte{0x00}, netip.MustParseAddrPort("127.0.0.1:10000")); !errors.Is(err, ErrClosed) {
		t.Errorf("SendTo() after close error = %v, want ErrClosed", err)
	}
	if _, _, err := c.Receive(time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() after close error = %v, want ErrClosed", err)
	}
}

func TestEphemeralPortAssigned(t *testing.T) {
	c, err := Open("", false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	if c.LocalAddr().Port() == 0 {
		t.Error("expected a concrete ephemeral port after bind")
	}
}
