// Package protocol implements the binary frame codec for WiWo-family
// devices (S20 WiFi sockets, AllOne IR/RF433 blasters).
//
// Everything here was reverse-engineered from UDP captures of real
// hardware. There is no vendor documentation; the byte layouts in this
// package are the documentation.
//
// # Frame Format
//
// Every UDP datagram carries exactly one frame:
//   - Magic header: 0x68 0x64 (ASCII "hd")
//   - Length: 2 bytes, big-endian, counts the ENTIRE frame including
//     the magic and the length field itself
//   - Command code: 2 bytes, two ASCII letters per command
//   - Payload: variable, fixed offsets per command, no TLV
//
// There is no checksum. The magic header is the only integrity check,
// which is workable because frames never span datagrams.
//
// # Command Codes
//
// The vendor echoes the request code in responses, so one code usually
// names a whole exchange:
//   - "qa" discovery request and reply
//   - "cl" subscribe; the ack doubles as the state poll
//   - "dc" switch a socket on or off
//   - "sf" unsolicited state-change push
//   - "ls" enter learn mode; the captured signal arrives on the same code
//   - "ic" emit a captured signal, never acknowledged
//   - "us" release a subscription (best-effort, no capture exists)
//
// # Usage Example
//
//	payload := protocol.SubscribePayload(mac)
//	data, err := protocol.Encode(protocol.CmdSubscribe, payload)
//	if err != nil {
//	    return err
//	}
//	// ... send data, receive reply ...
//	frame, err := protocol.Decode(reply)
//	if err != nil {
//	    return err
//	}
//	on, err := protocol.ParseStateAck(frame)
//
// # Error Handling
//
// Decode distinguishes two failure classes:
//   - ErrMalformedFrame: wrong magic or an internally inconsistent
//     length field. The bytes are not this protocol.
//   - ErrTruncatedFrame: a plausible frame cut short.
//
// Unknown command codes are never an error; Decode returns the raw code
// and the caller decides whether it is unexpected in context.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
