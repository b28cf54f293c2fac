package emulator

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

var (
	socketMAC  = protocol.MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}
	blasterMAC = protocol.MAC{0xac, 0xcf, 0x43, 0x78, 0xef, 0xdc}
)

func TestDiscoverExchange(t *testing.T) {
	addr, _ := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, true)
		s.AddBlaster(blasterMAC)
	})
	conn := dialController(t)

	sendFrame(t, conn, addr, protocol.CmdDiscover, nil)

	found := make(map[protocol.MAC]*protocol.DiscoverReply)
	for i := 0; i < 2; i++ {
		frame := recvCommand(t, conn, protocol.CmdDiscover, 2*time.Second)
		reply, err := protocol.ParseDiscoverReply(frame)
		if err != nil {
			t.Fatalf("unusable identification reply: %v", err)
		}
		found[reply.MAC] = reply
	}

	sock := found[socketMAC]
	if sock == nil {
		t.Fatal("socket missing from discovery")
	}
	if sock.Model != "SOC008" {
		t.Errorf("socket model = %q, want SOC008", sock.Model)
	}
	if !sock.On {
		t.Error("socket should report on")
	}

	blast := found[blasterMAC]
	if blast == nil {
		t.Fatal("blaster missing from discovery")
	}
	if blast.Model != "IRD005" {
		t.Errorf("blaster model = %q, want IRD005", blast.Model)
	}
}

func TestClaimAndSwitch(t *testing.T) {
	addr, _ := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	conn := dialController(t)

	ack := claim(t, conn, addr, socketMAC)
	if on, err := protocol.ParseStateAck(ack); err != nil || on {
		t.Fatalf("claim ack state = %v, %v; want off", on, err)
	}

	sendFrame(t, conn, addr, protocol.CmdSetState, protocol.SetStatePayload(socketMAC, true))
	ack = recvCommand(t, conn, protocol.CmdSetState, 2*time.Second)
	if on, err := protocol.ParseStateAck(ack); err != nil || !on {
		t.Fatalf("switch ack state = %v, %v; want on", on, err)
	}

	// The transition is also announced to the claim holder
	ev := recvCommand(t, conn, protocol.CmdStateEvent, 2*time.Second)
	mac, on, err := protocol.ParseStateEvent(ev)
	if err != nil {
		t.Fatalf("unusable announcement: %v", err)
	}
	if mac != socketMAC || !on {
		t.Errorf("announcement = %s on=%v, want %s on=true", mac, on, socketMAC)
	}

	// A fresh claim confirms the relay really moved
	time.Sleep(150 * time.Millisecond)
	ack = claim(t, conn, addr, socketMAC)
	if on, err := protocol.ParseStateAck(ack); err != nil || !on {
		t.Fatalf("re-claim ack state = %v, %v; want on", on, err)
	}
}

func TestSwitchFromStrangerIgnored(t *testing.T) {
	addr, _ := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	holder := dialController(t)
	stranger := dialController(t)

	claim(t, holder, addr, socketMAC)

	sendFrame(t, stranger, addr, protocol.CmdSetState, protocol.SetStatePayload(socketMAC, true))
	expectSilence(t, stranger, 300*time.Millisecond)

	// The holder still sees the relay off
	time.Sleep(150 * time.Millisecond)
	ack := claim(t, holder, addr, socketMAC)
	if on, err := protocol.ParseStateAck(ack); err != nil || on {
		t.Fatalf("state after stranger's switch = %v, %v; want off", on, err)
	}
}

func TestCompetingClaimWedges(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 0, ClaimWindow: time.Second}
	addr, _ := startEmulator(t, cfg, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	holder := dialController(t)
	challenger := dialController(t)

	claim(t, holder, addr, socketMAC)

	// Spaced past the rapid-handshake drop so the competing claim is
	// really seen, not discarded for its timing
	time.Sleep(150 * time.Millisecond)

	// The challenger gets nothing and the device goes dark
	sendFrame(t, challenger, addr, protocol.CmdSubscribe, protocol.SubscribePayload(socketMAC))
	expectSilence(t, challenger, 300*time.Millisecond)

	sendFrame(t, challenger, addr, protocol.CmdDiscover, nil)
	expectSilence(t, challenger, 300*time.Millisecond)

	// Once the claim lapses the device answers discovery again
	time.Sleep(500 * time.Millisecond)
	sendFrame(t, challenger, addr, protocol.CmdDiscover, nil)
	frame := recvCommand(t, challenger, protocol.CmdDiscover, 2*time.Second)
	if _, err := protocol.ParseDiscoverReply(frame); err != nil {
		t.Fatalf("unusable identification reply after lapse: %v", err)
	}
}

func TestRapidClaimsDropped(t *testing.T) {
	addr, _ := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	conn := dialController(t)

	claim(t, conn, addr, socketMAC)

	// A handshake fired right after the last one is dropped
	sendFrame(t, conn, addr, protocol.CmdSubscribe, protocol.SubscribePayload(socketMAC))
	expectSilence(t, conn, 300*time.Millisecond)

	// Spaced out, it works again
	time.Sleep(150 * time.Millisecond)
	claim(t, conn, addr, socketMAC)
}

func TestLearnAndCapture(t *testing.T) {
	addr, srv := startEmulator(t, nil, func(s *Server) {
		s.AddBlaster(blasterMAC)
	})
	conn := dialController(t)
	signal := []byte{0x00, 0x4e, 0x0a, 0x03, 0x88, 0x55}

	claim(t, conn, addr, blasterMAC)

	sendFrame(t, conn, addr, protocol.CmdLearn, protocol.LearnPayload(blasterMAC))
	ack := recvCommand(t, conn, protocol.CmdLearn, 2*time.Second)
	if _, err := protocol.ParseCaptureReply(ack, blasterMAC); err == nil {
		t.Fatal("arming acknowledgement parsed as a capture")
	}

	if err := srv.PressRemote(blasterMAC, signal); err != nil {
		t.Fatalf("PressRemote() error: %v", err)
	}

	capture := recvCommand(t, conn, protocol.CmdLearn, 2*time.Second)
	got, err := protocol.ParseCaptureReply(capture, blasterMAC)
	if err != nil {
		t.Fatalf("capture did not parse: %v", err)
	}
	if !bytes.Equal(got, signal) {
		t.Errorf("captured signal = % x, want % x", got, signal)
	}

	// Learn mode is one-shot
	if err := srv.PressRemote(blasterMAC, signal); err == nil {
		t.Error("PressRemote() should fail once learn mode disarmed")
	}
}

func TestEmitRecorded(t *testing.T) {
	addr, srv := startEmulator(t, nil, func(s *Server) {
		s.AddBlaster(blasterMAC)
	})
	conn := dialController(t)
	signal := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}

	claim(t, conn, addr, blasterMAC)

	sendFrame(t, conn, addr, protocol.CmdEmit, protocol.EmitPayload(blasterMAC, signal))

	// Replay is silent; give the emulator a moment, then inspect
	expectSilence(t, conn, 300*time.Millisecond)
	if got := srv.LastEmitted(blasterMAC); !bytes.Equal(got, signal) {
		t.Errorf("LastEmitted() = % x, want % x", got, signal)
	}
}

func TestReleaseFreesClaim(t *testing.T) {
	addr, _ := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	first := dialController(t)
	second := dialController(t)

	claim(t, first, addr, socketMAC)
	sendFrame(t, first, addr, protocol.CmdUnsubscribe, protocol.UnsubscribePayload(socketMAC))

	// Released, the device takes the next claim without wedging
	time.Sleep(150 * time.Millisecond)
	claim(t, second, addr, socketMAC)
}

func TestPressButtonAnnounces(t *testing.T) {
	addr, srv := startEmulator(t, nil, func(s *Server) {
		s.AddSocket(socketMAC, false)
	})
	conn := dialController(t)

	claim(t, conn, addr, socketMAC)

	if err := srv.PressButton(socketMAC); err != nil {
		t.Fatalf("PressButton() error: %v", err)
	}

	ev := recvCommand(t, conn, protocol.CmdStateEvent, 2*time.Second)
	mac, on, err := protocol.ParseStateEvent(ev)
	if err != nil {
		t.Fatalf("unusable announcement: %v", err)
	}
	if mac != socketMAC || !on {
		t.Errorf("announcement = %s on=%v, want %s on=true", mac, on, socketMAC)
	}
}

func startEmulator(t *testing.T, cfg *Config, setup func(*Server)) (netip.AddrPort, *Server) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 0}
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if setup != nil {
		setup(srv)
	}

	addr, err := srv.ListenAndServe()
	if err != nil {
		t.Fatalf("ListenAndServe() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return addr, srv
}

func dialController(t *testing.T) *transport.Conn {
	t.Helper()

	conn, err := transport.Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("bind controller socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *transport.Conn, dst netip.AddrPort, cmd protocol.Command, payload []byte) {
	t.Helper()

	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		t.Fatalf("encode %v frame: %v", cmd, err)
	}
	if err := conn.SendTo(data, dst); err != nil {
		t.Fatalf("send %v frame: %v", cmd, err)
	}
}

// recvCommand reads frames until one carries the wanted command.
func recvCommand(t *testing.T, conn *transport.Conn, want protocol.Command, timeout time.Duration) *protocol.Frame {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("no %v frame within %s", want, timeout)
		}
		data, _, err := conn.Receive(remaining)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if frame.Command == want {
			return frame
		}
	}
}

func expectSilence(t *testing.T, conn *transport.Conn, window time.Duration) {
	t.Helper()

	data, _, err := conn.Receive(window)
	if err == nil {
		t.Fatalf("unexpected datagram: % x", data)
	}
	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("receive failed: %v", err)
	}
}

func claim(t *testing.T, conn *transport.Conn, dst netip.AddrPort, mac protocol.MAC) *protocol.Frame {
	t.Helper()

	sendFrame(t, conn, dst, protocol.CmdSubscribe, protocol.SubscribePayload(mac))
	return recvCommand(t, conn, protocol.CmdSubscribe, 2*time.Second)
}
