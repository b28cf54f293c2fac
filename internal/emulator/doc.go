// Package emulator implements software WiWo devices behind a UDP
// socket.
//
// The emulator answers the same frames real hardware answers: it joins
// discovery, accepts claims, switches emulated relays, arms learn mode
// and delivers captures, and swallows replay commands. It exists for
// two jobs: end-to-end tests that need a device without hardware, and
// the wiwo-emu binary for demos and manual poking.
//
// # Fidelity
//
// The emulator reproduces the hardware quirks that shape client code:
//
//   - Commands are honored only from the address holding the current
//     claim, and a device holds one claim at a time
//   - A competing claim wedges the device out of discovery until the
//     live claim lapses or is released
//   - Claim handshakes arriving less than 100ms apart are dropped
//   - Replay commands are never acknowledged
//
// Claim lifetime is configurable so tests can exercise lapse without
// waiting the hardware's three minutes.
//
// # Test Hooks
//
// PressButton flips a socket's relay like its physical button would;
// PressRemote points an imaginary remote at a blaster in learn mode.
// Both drive the same announcement and capture paths the network
// traffic drives.
//
// # Usage Example
//
//	srv, err := emulator.New(&emulator.Config{Host: "127.0.0.1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.AddSocket(mac, false)
//	addr, err := srv.ListenAndServe()
//	// ... point a scanner or session at addr ...
//	srv.Shutdown(context.Background())
package emulator
