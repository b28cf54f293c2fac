package discovery

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

func TestCollectorDedup(t *testing.T) {
	socket := mustMAC(t, "ac:df:23:8d:1d:2e")
	blaster := mustMAC(t, "ac:cf:43:78:ef:dc")

	replySocket := encodeReply(t, socket, "SOC008", true)
	replyBlaster := encodeReply(t, blaster, "IRD005", false)

	socketSrc := netip.MustParseAddrPort("192.168.1.45:10000")
	blasterSrc := netip.MustParseAddrPort("192.168.1.37:10000")

	col := newCollector()
	now := time.Now()

	if _, ok := col.add(replySocket, socketSrc, now); !ok {
		t.Fatal("first socket reply not recorded")
	}
	if _, ok := col.add(replyBlaster, blasterSrc, now); !ok {
		t.Fatal("first blaster reply not recorded")
	}
	if _, ok := col.add(replySocket, socketSrc, now); ok {
		t.Fatal("repeated socket reply recorded twice")
	}

	if len(col.records) != 2 {
		t.Fatalf("got %d records, want 2: %v", len(col.records), col.records)
	}

	sock, ok := col.records["192.168.1.45"]
	if !ok {
		t.Fatalf("no record for 192.168.1.45: %v", col.records)
	}
	if sock.Kind != KindSocket {
		t.Errorf("socket record kind = %v, want %v", sock.Kind, KindSocket)
	}
	if sock.MAC != socket {
		t.Errorf("socket record MAC = %s, want %s", sock.MAC, socket)
	}
	if !sock.On {
		t.Error("socket record should be on")
	}

	blast, ok := col.records["192.168.1.37"]
	if !ok {
		t.Fatalf("no record for 192.168.1.37: %v", col.records)
	}
	if blast.Kind != KindBlaster {
		t.Errorf("blaster record kind = %v, want %v", blast.Kind, KindBlaster)
	}
	if blast.MAC != blaster {
		t.Errorf("blaster record MAC = %s, want %s", blast.MAC, blaster)
	}
}

func TestCollectorIgnoresNoise(t *testing.T) {
	mac := mustMAC(t, "ac:df:23:8d:1d:2e")

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "garbage bytes",
			data: []byte{0xde, 0xad, 0xbe, 0xef},
		},
		{
			name: "wrong command",
			data: mustEncode(t, protocol.CmdSubscribe, protocol.StateAckPayload(mac, true)),
		},
		{
			name: "short reply payload",
			data: mustEncode(t, protocol.CmdDiscover, []byte{0x00, 0x01, 0x02}),
		},
		{
			name: "unrecognized model",
			data: encodeReply(t, mac, "XXX001", false),
		},
	}

	src := netip.MustParseAddrPort("192.168.1.5:10000")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := newCollector()
			if _, ok := col.add(tt.data, src, time.Now()); ok {
				t.Error("noise datagram produced a record")
			}
			if len(col.records) != 0 {
				t.Errorf("got %d records, want 0", len(col.records))
			}
		})
	}
}

func TestDiscoverAllLoopback(t *testing.T) {
	mac := mustMAC(t, "ac:df:23:8d:1d:2e")
	addr, stop := fakeDevice(t, encodeReply(t, mac, "SOC008", true))
	defer stop()

	s := NewScanner()
	s.Wait = 400 * time.Millisecond
	s.Timeout = 200 * time.Millisecond
	s.Broadcast = addr.Addr()
	s.Port = addr.Port()
	s.LocalAddr = "127.0.0.1:0"

	records, err := s.DiscoverAll()
	if err != nil {
		t.Fatalf("DiscoverAll() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1: %v", len(records), records)
	}

	rec, ok := records["127.0.0.1"]
	if !ok {
		t.Fatalf("no record keyed by responder address: %v", records)
	}
	if rec.MAC != mac {
		t.Errorf("record MAC = %s, want %s", rec.MAC, mac)
	}
	if rec.Kind != KindSocket {
		t.Errorf("record kind = %v, want %v", rec.Kind, KindSocket)
	}
	if rec.DiscoveredAt.IsZero() {
		t.Error("record missing discovery timestamp")
	}
}

func TestDiscoverOne(t *testing.T) {
	mac := mustMAC(t, "ac:cf:43:78:ef:dc")
	addr, stop := fakeDevice(t, encodeReply(t, mac, "IRD005", false))
	defer stop()

	s := NewScanner()
	s.Timeout = time.Second
	s.Port = addr.Port()
	s.LocalAddr = "127.0.0.1:0"

	rec, err := s.DiscoverOne(addr.Addr())
	if err != nil {
		t.Fatalf("DiscoverOne() error: %v", err)
	}
	if rec.MAC != mac {
		t.Errorf("record MAC = %s, want %s", rec.MAC, mac)
	}
	if rec.Kind != KindBlaster {
		t.Errorf("record kind = %v, want %v", rec.Kind, KindBlaster)
	}
}

func TestDiscoverOneNotFound(t *testing.T) {
	// A bound but silent socket stands in for an absent device. Probing
	// a genuinely closed port would behave the same from our side since
	// unconnected UDP sockets never see the ICMP refusal.
	silent, err := transport.Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("bind silent socket: %v", err)
	}
	defer silent.Close()

	s := NewScanner()
	s.Timeout = 200 * time.Millisecond
	s.Port = silent.LocalAddr().Port()
	s.LocalAddr = "127.0.0.1:0"

	start := time.Now()
	_, err = s.DiscoverOne(silent.LocalAddr().Addr())
	if err == nil {
		t.Fatal("DiscoverOne() succeeded against a silent host")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("gave up after %s, before the window closed", elapsed)
	}
}

func TestDiscoverOneRejectsUnusableReply(t *testing.T) {
	// The responder answers probes with bytes that do not decode. The
	// probe keeps waiting for a usable reply and reports not found.
	addr, stop := fakeDevice(t, []byte{0x01, 0x02, 0x03})
	defer stop()

	s := NewScanner()
	s.Timeout = 300 * time.Millisecond
	s.Port = addr.Port()
	s.LocalAddr = "127.0.0.1:0"

	_, err := s.DiscoverOne(addr.Addr())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

// fakeDevice binds a loopback socket that answers every identification
// probe with the given reply bytes. The returned func stops it.
func fakeDevice(t *testing.T, reply []byte) (netip.AddrPort, func()) {
	t.Helper()

	conn, err := transport.Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("bind fake device: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			data, src, err := conn.Receive(5 * time.Second)
			if err != nil {
				return
			}
			frame, err := protocol.Decode(data)
			if err != nil || frame.Command != protocol.CmdDiscover {
				continue
			}
			if err := conn.SendTo(reply, src); err != nil {
				return
			}
		}
	}()

	stop := func() {
		conn.Close()
		<-done
	}
	return conn.LocalAddr(), stop
}

func mustMAC(t *testing.T, s string) protocol.MAC {
	t.Helper()
	mac, err := protocol.ParseMAC(s)
	if err != nil {
		t.Fatalf("parse MAC %q: %v", s, err)
	}
	return mac
}

func mustEncode(t *testing.T, cmd protocol.Command, payload []byte) []byte {
	t.Helper()
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		t.Fatalf("encode %v frame: %v", cmd, err)
	}
	return data
}

func encodeReply(t *testing.T, mac protocol.MAC, model string, on bool) []byte {
	t.Helper()
	return mustEncode(t, protocol.CmdDiscover,
		protocol.DiscoverReplyPayload(mac, model, 0x10dc08b2, on))
}

func BenchmarkCollectorAdd(b *testing.B) {
	mac, err := protocol.ParseMAC("ac:df:23:8d:1d:2e")
	if err != nil {
		b.Fatal(err)
	}
	data, err := protocol.Encode(protocol.CmdDiscover,
		protocol.DiscoverReplyPayload(mac, "SOC008", 0, true))
	if err != nil {
		b.Fatal(err)
	}
	src := netip.MustParseAddrPort("192.168.1.45:10000")
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		col := newCollector()
		col.add(data, src, now)
	}
}
