package protocol

import "fmt"

// Command is the two-byte command code at offset 4 of every frame, held
// big-endian so the constant value reads like the hex in a capture.
type Command uint16

// Command codes. The vendor uses two ASCII letters per command and echoes
// the request code back in the matching response, so most exchanges share
// one code for both directions.
//
// All codes verified from live captures except CmdUnsubscribe: the vendor
// firmware has no capture-observed unsubscribe, devices simply age out a
// subscription after a few minutes without traffic. "us" follows the
// two-letter mnemonic convention and is sent best-effort on session close.
const (
	// CmdDiscover ("qa") requests identification. Broadcast during a scan,
	// unicast when probing a known address. The response reuses the code.
	CmdDiscover Command = 0x7161

	// CmdSubscribe ("cl") claims the device's single subscriber slot. The
	// ack reuses the code and carries the current power state in its last
	// payload byte, which makes this exchange double as the state poll.
	CmdSubscribe Command = 0x636c

	// CmdSetState ("dc") switches a socket on or off. Acked with the same
	// code.
	CmdSetState Command = 0x6463

	// CmdStateEvent ("sf") is pushed by a socket when its state changes,
	// both to the subscriber and onto the LAN.
	CmdStateEvent Command = 0x7366

	// CmdLearn ("ls") enters learning mode on a blaster. The short ack and
	// the later frame carrying the captured signal both reuse the code.
	CmdLearn Command = 0x6c73

	// CmdEmit ("ic") replays a captured signal through a blaster. The
	// device sends no acknowledgement.
	CmdEmit Command = 0x6963

	// CmdUnsubscribe ("us") releases the subscriber slot. Best-effort, no
	// ack expected.
	CmdUnsubscribe Command = 0x7573
)

// Bytes returns the code as the two bytes that appear on the wire.
func (c Command) Bytes() [2]byte {
	return [2]byte{byte(c >> 8), byte(c)}
}

// String renders ASCII codes as their mnemonic, anything else as hex.
func (c Command) String() string {
	b := c.Bytes()
	if printable(b[0]) && printable(b[1]) {
		return fmt.Sprintf("%c%c (0x%04x)", b[0], b[1], uint16(c))
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}

func printable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}
