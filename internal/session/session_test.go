package session

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/emulator"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

var (
	socketMAC  = protocol.MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}
	blasterMAC = protocol.MAC{0xac, 0xcf, 0x43, 0x78, 0xef, 0xdc}
)

func TestSubscribeAndQuery(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})
	sess := newTestSession(t, discovery.KindSocket, socketMAC, addr)

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if got := sess.State(); got != StateSubscribed {
		t.Errorf("state after subscribe = %v, want %v", got, StateSubscribed)
	}

	on, err := sess.QueryState()
	if err != nil {
		t.Fatalf("QueryState() error: %v", err)
	}
	if on {
		t.Error("socket should start off")
	}
}

func TestQueryStateSeesExternalChange(t *testing.T) {
	addr, srv := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})
	sess := newTestSession(t, discovery.KindSocket, socketMAC, addr)

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	// Someone presses the physical button
	if err := srv.PressButton(socketMAC); err != nil {
		t.Fatalf("PressButton() error: %v", err)
	}

	on, err := sess.QueryState()
	if err != nil {
		t.Fatalf("QueryState() error: %v", err)
	}
	if !on {
		t.Error("query should see the state the button set")
	}
}

func TestSetStateConfirmed(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})
	sess := newTestSession(t, discovery.KindSocket, socketMAC, addr)

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	on, err := sess.SetState(true)
	if err != nil {
		t.Fatalf("SetState(true) error: %v", err)
	}
	if !on {
		t.Error("confirmed state after switching on = off")
	}

	on, err = sess.SetState(false)
	if err != nil {
		t.Fatalf("SetState(false) error: %v", err)
	}
	if on {
		t.Error("confirmed state after switching off = on")
	}
}

func TestToggle(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, true)
	})
	sess := newTestSession(t, discovery.KindSocket, socketMAC, addr)

	on, err := sess.Toggle()
	if err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	if on {
		t.Error("toggle from on should land off")
	}

	on, err = sess.Toggle()
	if err != nil {
		t.Fatalf("second Toggle() error: %v", err)
	}
	if !on {
		t.Error("toggle from off should land on")
	}
}

func TestLearnSignal(t *testing.T) {
	addr, srv := startEmulator(t, func(s *emulator.Server) {
		s.AddBlaster(blasterMAC)
	})
	sess := newTestSession(t, discovery.KindBlaster, blasterMAC, addr)
	signal := []byte{0x00, 0x4e, 0x0a, 0x03, 0x88, 0x55, 0x21}

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	pressErr := make(chan error, 1)
	go func() {
		time.Sleep(200 * time.Millisecond)
		pressErr <- srv.PressRemote(blasterMAC, signal)
	}()

	got, err := sess.LearnSignal(3 * time.Second)
	if err != nil {
		t.Fatalf("LearnSignal() error: %v", err)
	}
	if err := <-pressErr; err != nil {
		t.Fatalf("PressRemote() error: %v", err)
	}
	if !bytes.Equal(got, signal) {
		t.Errorf("captured signal = % x, want % x", got, signal)
	}
}

func TestLearnSignalWindowCloses(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddBlaster(blasterMAC)
	})
	sess := newTestSession(t, discovery.KindBlaster, blasterMAC, addr)

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	start := time.Now()
	got, err := sess.LearnSignal(400 * time.Millisecond)
	if err != nil {
		t.Fatalf("a silent window is not a fault, got error: %v", err)
	}
	if got != nil {
		t.Errorf("captured % x from a window with no press", got)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("window closed after %s, before it should", elapsed)
	}
}

func TestEmitSignal(t *testing.T) {
	addr, srv := startEmulator(t, func(s *emulator.Server) {
		s.AddBlaster(blasterMAC)
	})
	sess := newTestSession(t, discovery.KindBlaster, blasterMAC, addr)
	signal := []byte{0xde, 0xad, 0xbe, 0xef, 0x42}

	if err := sess.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if err := sess.EmitSignal(signal); err != nil {
		t.Fatalf("EmitSignal() error: %v", err)
	}

	// Replay is one-way; poll the emulator for the transmission
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := srv.LastEmitted(blasterMAC); got != nil {
			if !bytes.Equal(got, signal) {
				t.Errorf("transmitted signal = % x, want % x", got, signal)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("emulator never saw the replay command")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEmitWithoutSubscribe(t *testing.T) {
	addr, srv := startEmulator(t, func(s *emulator.Server) {
		s.AddBlaster(blasterMAC)
	})
	sess := newTestSession(t, discovery.KindBlaster, blasterMAC, addr)

	if err := sess.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	err := sess.EmitSignal([]byte{0x01, 0x02})
	if !IsNotSubscribed(err) {
		t.Fatalf("error = %v, want a missing-subscription error", err)
	}

	// The precondition failed before anything went on the wire
	time.Sleep(200 * time.Millisecond)
	if got := srv.LastEmitted(blasterMAC); got != nil {
		t.Errorf("replay command was sent despite the failed precondition: % x", got)
	}
}

func TestKindPreconditions(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
		s.AddBlaster(blasterMAC)
	})

	sock := newTestSession(t, discovery.KindSocket, socketMAC, addr)
	if err := sock.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if _, err := sock.LearnSignal(time.Second); !IsUnsupported(err) {
		t.Errorf("LearnSignal on a socket = %v, want unsupported", err)
	}
	if err := sock.EmitSignal([]byte{0x01}); !IsUnsupported(err) {
		t.Errorf("EmitSignal on a socket = %v, want unsupported", err)
	}

	blast := newTestSession(t, discovery.KindBlaster, blasterMAC, addr)
	if err := blast.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if _, err := blast.QueryState(); !IsUnsupported(err) {
		t.Errorf("QueryState on a blaster = %v, want unsupported", err)
	}
	if _, err := blast.SetState(true); !IsUnsupported(err) {
		t.Errorf("SetState on a blaster = %v, want unsupported", err)
	}
}

func TestSubscribeTimeout(t *testing.T) {
	// A bound but silent socket stands in for a dead device
	silent, err := transport.Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("bind silent socket: %v", err)
	}
	defer silent.Close()

	sess := newTestSession(t, discovery.KindSocket, socketMAC, silent.LocalAddr())
	sess.Timeout = 150 * time.Millisecond
	sess.Retries = 1

	err = sess.Subscribe()
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want a timeout", err)
	}
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("timeout error should wrap the transport sentinel, got %v", err)
	}
	if sess.State() == StateSubscribed {
		t.Error("session claims to be subscribed after a timeout")
	}
}

func TestSecondSessionBlockedWhileClaimed(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})

	holder := newTestSession(t, discovery.KindSocket, socketMAC, addr)
	if err := holder.Subscribe(); err != nil {
		t.Fatalf("holder Subscribe() error: %v", err)
	}

	// Spaced so the competing claim is seen rather than dropped as a
	// rapid handshake
	time.Sleep(150 * time.Millisecond)

	intruder := newTestSession(t, discovery.KindSocket, socketMAC, addr)
	intruder.Timeout = 200 * time.Millisecond
	intruder.Retries = 1

	err := intruder.Subscribe()
	if !IsTimeout(err) {
		t.Fatalf("intruder error = %v, want a timeout", err)
	}
	if intruder.State() == StateSubscribed {
		t.Error("intruder claims to be subscribed")
	}
}

func TestCloseReleasesClaim(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})

	first := New(testRecord(discovery.KindSocket, socketMAC, addr))
	first.Port = addr.Port()
	if err := first.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if got := first.State(); got != StateClosed {
		t.Errorf("state after close = %v, want %v", got, StateClosed)
	}

	// The farewell released the claim, so a new session gets in
	// without wedging the device
	time.Sleep(150 * time.Millisecond)
	second := newTestSession(t, discovery.KindSocket, socketMAC, addr)
	if err := second.Subscribe(); err != nil {
		t.Fatalf("Subscribe() after release error: %v", err)
	}
}

func TestOpenIdempotent(t *testing.T) {
	addr, _ := startEmulator(t, func(s *emulator.Server) {
		s.AddSocket(socketMAC, false)
	})
	sess := newTestSession(t, discovery.KindSocket, socketMAC, addr)

	if err := sess.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := sess.Open(); err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	if got := sess.State(); got != StateOpen {
		t.Errorf("state = %v, want %v", got, StateOpen)
	}
}

func startEmulator(t *testing.T, setup func(*emulator.Server)) (netip.AddrPort, *emulator.Server) {
	t.Helper()

	srv, err := emulator.New(&emulator.Config{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("emulator.New() error: %v", err)
	}
	setup(srv)

	addr, err := srv.ListenAndServe()
	if err != nil {
		t.Fatalf("emulator.ListenAndServe() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return addr, srv
}

func testRecord(kind discovery.DeviceKind, mac protocol.MAC, addr netip.AddrPort) *discovery.DeviceRecord {
	model := "SOC008"
	if kind == discovery.KindBlaster {
		model = "IRD005"
	}
	return &discovery.DeviceRecord{
		Kind:         kind,
		IP:           addr.Addr(),
		MAC:          mac,
		Model:        model,
		DiscoveredAt: time.Now(),
	}
}

// newTestSession builds a session aimed at the emulator and tears it
// down with the test.
func newTestSession(t *testing.T, kind discovery.DeviceKind, mac protocol.MAC, addr netip.AddrPort) *Session {
	t.Helper()

	sess := New(testRecord(kind, mac, addr))
	sess.Port = addr.Port()
	t.Cleanup(func() { sess.Close() })
	return sess
}
