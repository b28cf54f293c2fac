package discovery

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/transport"
)

func TestMonitorNext(t *testing.T) {
	mon, err := NewMonitor("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer mon.Close()

	dev, err := transport.Open("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("bind fake device: %v", err)
	}
	defer dev.Close()

	mac := mustMAC(t, "ac:df:23:8d:1d:2e")

	// Unrelated traffic first so Next has something to skip.
	if err := dev.SendTo(mustEncode(t, protocol.CmdDiscover, nil), mon.LocalAddr()); err != nil {
		t.Fatalf("send noise: %v", err)
	}
	announce := mustEncode(t, protocol.CmdStateEvent, protocol.StateAckPayload(mac, true))
	if err := dev.SendTo(announce, mon.LocalAddr()); err != nil {
		t.Fatalf("send state event: %v", err)
	}

	ev, err := mon.Next(2 * time.Second)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if ev.MAC != mac {
		t.Errorf("event MAC = %s, want %s", ev.MAC, mac)
	}
	if !ev.On {
		t.Error("event should report the device on")
	}
	if want := netip.MustParseAddr("127.0.0.1"); ev.Addr != want {
		t.Errorf("event Addr = %s, want %s", ev.Addr, want)
	}
	if ev.At.IsZero() {
		t.Error("event missing arrival timestamp")
	}
}

func TestMonitorNextTimeout(t *testing.T) {
	mon, err := NewMonitor("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer mon.Close()

	start := time.Now()
	_, err = mon.Next(150 * time.Millisecond)
	if err == nil {
		t.Fatal("Next() returned without any traffic")
	}
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("returned after %s, before the timeout", elapsed)
	}
}

func TestMonitorEventString(t *testing.T) {
	ev := &Event{
		MAC:  mustMAC(t, "ac:df:23:8d:1d:2e"),
		On:   false,
		Addr: netip.MustParseAddr("192.168.1.45"),
	}
	if got, want := ev.String(), "ac:df:23:8d:1d:2e is now off (from 192.168.1.45)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
