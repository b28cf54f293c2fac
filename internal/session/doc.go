// Package session drives command exchanges with a single WiWo device.
//
// This package implements the per-device half of the protocol: claiming
// the device, reading and switching socket power, and the two-phase
// capture and replay of remote control signals on blasters. Discovery
// of devices lives in the discovery package; a session starts from one
// of its records.
//
// # Session Lifecycle
//
// A session moves through three states:
//
//	closed -> open -> subscribed -> open/closed
//
// Open binds a local UDP socket on an ephemeral port. Subscribe runs
// the claim handshake; devices only honor commands from the address
// that most recently claimed them, so every command path starts with a
// subscription. Close sends a best effort farewell and releases the
// socket.
//
// # Usage Example
//
//	// Start from a discovery record
//	rec, err := discovery.FindDevice("192.168.1.45")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess := session.New(rec)
//	defer sess.Close()
//
//	if err := sess.Subscribe(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Switch the socket and read back the confirmed state
//	on, err := sess.SetState(true)
//
// # Signal Capture and Replay
//
// Blasters capture whatever a remote control sends while they are in
// learn mode:
//
//	sig, err := sess.LearnSignal(15 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if sig == nil {
//	    fmt.Println("no button was pressed")
//	}
//
// A later EmitSignal replays the captured bytes through the device's
// transmitter. Replay is not acknowledged by the hardware.
//
// # Timing Quirks
//
// Two hardware behaviors shape this package. Claim handshakes sent
// less than 100ms apart are answered unreliably, so the session paces
// them. And a device holds at most one claim at a time: while another
// controller's claim is live, commands and even discovery probes can
// go unanswered until that claim lapses, roughly three minutes after
// its holder goes quiet. Both surface as timeouts, not errors of their
// own; GetTroubleshootingHint spells out the second one for users.
//
// # Thread Safety
//
// Session instances are not safe for concurrent use. The protocol is
// one request, one reply on one socket; run concurrent work through
// separate sessions.
//
// # Error Handling
//
// All failures are *SessionError values carrying a category, a
// human-readable message, and the underlying cause for errors.Is
// inspection. Helpers like IsTimeout and IsRetryable classify without
// unwrapping by hand.
package session
