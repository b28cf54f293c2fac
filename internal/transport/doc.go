// Package transport owns the UDP endpoints the protocol runs over.
//
// A Conn is one bound socket with a blocking, timeout-driven receive.
// Every exchange in the protocol is a synchronous send-then-receive round
// trip, so the transport deliberately has no background reader, no queue
// and no callbacks; the calling goroutine suspends in Receive for at most
// the timeout it chose. That timeout is also the only cancellation
// mechanism, matching how the devices themselves behave: they either
// answer promptly or not at all.
//
// Sends and receives are never retried here. A lost datagram surfaces as
// ErrTimeout at the caller, who knows whether the exchange is worth
// repeating.
//
// Replies from a device go to the source port of the request, so
// endpoints bind ephemeral ports by default. Binding the vendor port
// 10000 is reserved for components that listen for unsolicited traffic.
package transport
