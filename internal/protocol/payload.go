package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Payload builders and parsers for every exchange in the protocol. Byte
// layouts come from live captures; offsets are fixed, there is no TLV or
// self-description anywhere in this protocol.

// Power state bytes as they appear on the wire.
const (
	StateOff byte = 0x00
	StateOn  byte = 0x01
)

// Fixed padding runs. The firmware appears to treat these as field
// separators; their content is never interpreted.
var (
	spaces6 = []byte{0x20, 0x20, 0x20, 0x20, 0x20, 0x20}
	zeros4  = []byte{0x00, 0x00, 0x00, 0x00}
)

const (
	// discoverReplyLen is the payload length of every identification
	// response seen in captures, socket and blaster alike.
	discoverReplyLen = 36

	// modelOffset is where the six ASCII model characters sit inside a
	// discovery reply payload. The first three classify the device:
	// "SOC" for sockets, "IRD" for blasters.
	modelOffset = 25
)

func stateByte(on bool) byte {
	if on {
		return StateOn
	}
	return StateOff
}

// identityBlock is the mac | spaces | reversed-mac | spaces run that opens
// the subscribe and unsubscribe payloads.
func identityBlock(mac MAC) []byte {
	b := make([]byte, 0, 24)
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	rev := mac.Reversed()
	b = append(b, rev[:]...)
	b = append(b, spaces6...)
	return b
}

// SubscribePayload builds the body of a subscribe request:
//
//	[0-5]   mac
//	[6-11]  spaces
//	[12-17] mac reversed
//	[18-23] spaces
func SubscribePayload(mac MAC) []byte {
	return identityBlock(mac)
}

// UnsubscribePayload mirrors the subscribe body. No capture exists for
// this frame; the identity block is the only self-identification shape
// the firmware understands, so the release uses the same one.
func UnsubscribePayload(mac MAC) []byte {
	return identityBlock(mac)
}

// SetStatePayload builds the body of a power command:
//
//	[0-5]   mac
//	[6-11]  spaces
//	[12-15] zeros
//	[16]    state (0x00 off, 0x01 on)
func SetStatePayload(mac MAC, on bool) []byte {
	b := make([]byte, 0, 17)
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	b = append(b, zeros4...)
	b = append(b, stateByte(on))
	return b
}

// LearnPayload builds the body of an enter-learning-mode command:
//
//	[0-5]   mac
//	[6-11]  spaces
//	[12-13] 0x01 0x00
//	[14-17] zeros
func LearnPayload(mac MAC) []byte {
	b := make([]byte, 0, 18)
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	b = append(b, 0x01, 0x00)
	b = append(b, zeros4...)
	return b
}

// EmitPayload builds the body of an emit command:
//
//	[0-5]   mac
//	[6-11]  spaces
//	[12-15] 0x65 0x00 0x00 0x00
//	[16-17] two random bytes
//	[18+]   raw signal, verbatim
//
// The two random bytes salt the frame so the firmware does not collapse
// back-to-back emissions of the same signal into one.
func EmitPayload(mac MAC, signal []byte) []byte {
	b := make([]byte, 0, 18+len(signal))
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	b = append(b, 0x65, 0x00, 0x00, 0x00)
	b = append(b, byte(rand.UintN(256)), byte(rand.UintN(256)))
	b = append(b, signal...)
	return b
}

// DiscoverReply is the parsed body of an identification response.
type DiscoverReply struct {
	MAC   MAC
	Model string // six ASCII chars, e.g. "SOC008" or "IRD005"
	Clock uint32 // device clock, little-endian; reported but not interpreted
	On    bool   // last payload byte; meaningful for sockets only
}

// ParseDiscoverReply decodes an identification response payload:
//
//	[0]     0x00
//	[1-6]   mac
//	[7-12]  spaces
//	[13-18] mac reversed
//	[19-24] spaces
//	[25-30] model, six ASCII chars
//	[31-34] device clock (little-endian)
//	[35]    power state
func ParseDiscoverReply(f *Frame) (*DiscoverReply, error) {
	if f.Command != CmdDiscover {
		return nil, fmt.Errorf("not a discovery reply: command %s", f.Command)
	}
	p := f.Payload
	if len(p) < discoverReplyLen {
		return nil, fmt.Errorf("discovery reply too short: %d bytes, need %d", len(p), discoverReplyLen)
	}

	mac, err := MACFromBytes(p[1:7])
	if err != nil {
		return nil, err
	}

	return &DiscoverReply{
		MAC:   mac,
		Model: string(p[modelOffset : modelOffset+6]),
		Clock: binary.LittleEndian.Uint32(p[31:35]),
		On:    p[discoverReplyLen-1] == StateOn,
	}, nil
}

// ParseStateAck reads the power state from a subscribe or set-state
// acknowledgement. Only the last payload byte is load-bearing; frame
// lengths vary slightly between firmware revisions.
func ParseStateAck(f *Frame) (bool, error) {
	if f.Command != CmdSubscribe && f.Command != CmdSetState && f.Command != CmdStateEvent {
		return false, fmt.Errorf("no state byte in %s frame", f.Command)
	}
	if len(f.Payload) == 0 {
		return false, fmt.Errorf("empty %s payload", f.Command)
	}
	return f.Payload[len(f.Payload)-1] == StateOn, nil
}

// ParseStateEvent decodes an unsolicited "sf" push: the device's MAC
// opens the payload and the new power state closes it.
func ParseStateEvent(f *Frame) (MAC, bool, error) {
	if f.Command != CmdStateEvent {
		return MAC{}, false, fmt.Errorf("not a state event: command %s", f.Command)
	}
	if len(f.Payload) < 7 {
		return MAC{}, false, fmt.Errorf("state event too short: %d bytes", len(f.Payload))
	}
	mac, err := MACFromBytes(f.Payload[:6])
	if err != nil {
		return MAC{}, false, err
	}
	return mac, f.Payload[len(f.Payload)-1] == StateOn, nil
}

// ParseCaptureReply extracts the learned signal from the long "ls" frame a
// blaster sends after the user presses a button on the remote.
//
// The signal sits after the device's identity: locate mac | spaces inside
// the payload, skip the six bytes that follow (four zeros plus a
// little-endian length the firmware writes but receivers do not need),
// and the remainder is the raw signal. The short "ls" ack that confirms
// entering learn mode has nothing after the identity and fails here,
// which is how callers tell the two apart.
func ParseCaptureReply(f *Frame, mac MAC) ([]byte, error) {
	if f.Command != CmdLearn {
		return nil, fmt.Errorf("not a capture frame: command %s", f.Command)
	}

	marker := append(append([]byte{}, mac[:]...), spaces6...)
	i := bytes.Index(f.Payload, marker)
	if i < 0 {
		return nil, fmt.Errorf("capture frame does not identify device %s", mac)
	}

	rest := f.Payload[i+len(marker):]
	if len(rest) <= 6 {
		return nil, fmt.Errorf("capture frame carries no signal")
	}
	signal := make([]byte, len(rest)-6)
	copy(signal, rest[6:])
	return signal, nil
}

// Device-side builders. The emulator uses these to answer like real
// firmware; keeping them next to the request builders keeps every byte
// offset in one file.

// DiscoverReplyPayload builds the body ParseDiscoverReply expects.
func DiscoverReplyPayload(mac MAC, model string, clock uint32, on bool) []byte {
	b := make([]byte, 0, discoverReplyLen)
	b = append(b, 0x00)
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	rev := mac.Reversed()
	b = append(b, rev[:]...)
	b = append(b, spaces6...)

	m := make([]byte, 6)
	copy(m, model)
	b = append(b, m...)

	var c [4]byte
	binary.LittleEndian.PutUint32(c[:], clock)
	b = append(b, c[:]...)
	b = append(b, stateByte(on))
	return b
}

// StateAckPayload builds a subscribe ack, set-state ack or state event
// body: mac | spaces | zeros | state.
func StateAckPayload(mac MAC, on bool) []byte {
	return SetStatePayload(mac, on)
}

// LearnAckPayload builds the short confirmation for entering learn mode.
// Identity only; ParseCaptureReply deliberately rejects it.
func LearnAckPayload(mac MAC) []byte {
	b := make([]byte, 0, 12)
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	return b
}

// CaptureReplyPayload builds the long frame carrying a learned signal:
// mac | spaces | zeros | length (little-endian) | signal.
func CaptureReplyPayload(mac MAC, signal []byte) []byte {
	b := make([]byte, 0, 18+len(signal))
	b = append(b, mac[:]...)
	b = append(b, spaces6...)
	b = append(b, zeros4...)
	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(signal)))
	b = append(b, l[:]...)
	b = append(b, signal...)
	return b
}
