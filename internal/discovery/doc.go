// Package discovery locates WiWo devices on the local network.
//
// Devices do not advertise themselves. Discovery works by sending an
// identification probe to the limited broadcast address on UDP port
// 10000 and collecting the replies that come back before the wait
// window closes. Every powered device that is not wedged by a stale
// subscription answers the probe with its MAC, model, and power state.
//
// # Discovery Process
//
// A broadcast scan works as follows:
//  1. Binds an ephemeral UDP port
//  2. Broadcasts a single identification probe
//  3. Collects replies until the wait window closes
//  4. Classifies each reply by its model marker (socket or blaster)
//  5. Returns one record per device, keyed by reply address
//
// A device that answers more than once, or is reachable over more than
// one interface, is recorded once; the first reply wins. Replies with
// an unrecognized model marker are dropped.
//
// # Usage Example
//
//	// Scan the network with a 3-second collection window
//	records, err := discovery.DiscoverAll(3 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for ip, rec := range records {
//	    fmt.Printf("Found: %s at %s\n", rec.MAC, ip)
//	}
//
//	// Probe a known address directly
//	rec, err := discovery.FindDevice("192.168.1.45")
//
// # State Monitoring
//
// Devices announce every power transition as an unsolicited event.
// Monitor listens for these announcements; Next blocks until one
// arrives or a timeout elapses. The default monitor bind claims the
// vendor port and cannot coexist with another listener on it.
//
// # Network Requirements
//
// - Broadcast scans only reach the local segment
// - Firewall must allow UDP port 10000 both ways
// - A device claimed by another controller's subscription may not
//   answer probes until that subscription lapses
//
// # Thread Safety
//
// Scanner and Monitor are not safe for concurrent use. Run concurrent
// scans with separate Scanner values; each binds its own socket.
package discovery
